package channel

// ring is an append-only buffer keeping the most recent cap entries, oldest
// dropped first. Bounds memory for long-lived sessions.
type ring[T any] struct {
	cap   int
	items []T
}

func newRing[T any](cap int) ring[T] {
	return ring[T]{cap: cap}
}

func (r *ring[T]) append(v T) {
	r.items = append(r.items, v)
	if len(r.items) > r.cap {
		excess := len(r.items) - r.cap
		r.items = append(r.items[:0], r.items[excess:]...)
	}
}

// snapshot returns a copy of the retained entries, oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// latest returns the most recent entry.
func (r *ring[T]) latest() (T, bool) {
	if len(r.items) == 0 {
		var zero T
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

func (r *ring[T]) len() int {
	return len(r.items)
}
