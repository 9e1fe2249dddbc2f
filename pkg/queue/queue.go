// Package queue implements the manual action-builder staging list. Live
// input events bypass it and go straight to the channel; the queue exists so
// a user can compose several commands and send them as one batch.
package queue

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/remotia/remotia/pkg/observability"
	"github.com/remotia/remotia/pkg/protocol"
)

// ErrIndexOutOfRange is returned by RemoveAt for an invalid position.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// Sender delivers a staged action. *channel.Channel satisfies it.
type Sender interface {
	SendAction(action protocol.Action) error
}

// ActionQueue is an insertion-ordered staging list of not-yet-sent commands.
type ActionQueue struct {
	mu      sync.Mutex
	actions []protocol.Action
	logger  *observability.Logger
}

// New creates an empty ActionQueue.
func New(logger *observability.Logger) *ActionQueue {
	if logger == nil {
		logger = observability.NewLogger("queue", slog.LevelInfo)
	}
	return &ActionQueue{logger: logger}
}

// Add appends an action to the queue.
func (q *ActionQueue) Add(action protocol.Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, action)
}

// RemoveAt drops the action at the given position.
func (q *ActionQueue) RemoveAt(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.actions) {
		return ErrIndexOutOfRange
	}
	q.actions = append(q.actions[:index], q.actions[index+1:]...)
	return nil
}

// Clear empties the queue.
func (q *ActionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = nil
}

// Len returns the number of staged actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Actions returns a copy of the staged actions in insertion order.
func (q *ActionQueue) Actions() []protocol.Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.Action, len(q.actions))
	copy(out, q.actions)
	return out
}

// Flush sends every staged action in insertion order, then clears the queue.
// A failed send is logged and does not block or roll back the rest.
func (q *ActionQueue) Flush(sender Sender) {
	q.mu.Lock()
	staged := q.actions
	q.actions = nil
	q.mu.Unlock()

	for _, action := range staged {
		if err := sender.SendAction(action); err != nil {
			q.logger.Warn("staged action not sent",
				slog.String("command", action.Type),
				slog.String("error", err.Error()))
		}
	}
}
