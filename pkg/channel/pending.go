package channel

// maxPendingCommands bounds the correlation table. When the cap is exceeded
// the oldest insertion is evicted, which can break correlation for very
// slow-responding commands; that trade-off is accepted to bound memory.
const maxPendingCommands = 200

// pendingTable maps in-flight command ids to their command type so inbound
// results can be matched back to what was asked. It exists for correlation
// only, not for delivery tracking.
type pendingTable struct {
	cap   int
	order []string
	types map[string]string
}

func newPendingTable(cap int) *pendingTable {
	return &pendingTable{
		cap:   cap,
		types: make(map[string]string),
	}
}

func (t *pendingTable) add(id, commandType string) {
	if _, exists := t.types[id]; !exists {
		t.order = append(t.order, id)
	}
	t.types[id] = commandType

	for len(t.order) > t.cap {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.types, oldest)
	}
}

// remove evicts the entry and returns its command type.
func (t *pendingTable) remove(id string) (string, bool) {
	commandType, ok := t.types[id]
	if !ok {
		return "", false
	}
	delete(t.types, id)
	for i, pending := range t.order {
		if pending == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return commandType, true
}

func (t *pendingTable) len() int {
	return len(t.types)
}
