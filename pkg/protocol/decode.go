package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one decoded inbound message. Concrete types form a closed set;
// OpaqueEvent is the forward-compatible fallback.
type Event interface {
	event()
}

// PingEvent is a keep-alive signal. No state change.
type PingEvent struct{}

// SubscriptionRejectedEvent signals the server refused the channel
// subscription, normally because the access token is stale.
type SubscriptionRejectedEvent struct{}

// DisconnectEvent is a server-initiated disconnect control signal.
type DisconnectEvent struct {
	Reason string
}

// Unauthorized reports whether the disconnect is an auth failure.
func (e DisconnectEvent) Unauthorized() bool {
	return strings.Contains(strings.ToLower(e.Reason), "unauthorized")
}

// FrameBatchEvent carries one remote-screen update.
type FrameBatchEvent struct {
	Batch FrameBatch
}

// ResultEvent is the correlated outcome of a previously sent command.
type ResultEvent struct {
	ID     string
	Status string
	// Display is the stringified result for the result log.
	Display string
	// Raw preserves the undecoded result for consumers that parse a
	// specific shape, such as the process list.
	Raw json.RawMessage
}

// OpaqueEvent is an inner message outside the known command families.
type OpaqueEvent struct {
	Command string
	Payload json.RawMessage
}

func (PingEvent) event()                 {}
func (SubscriptionRejectedEvent) event() {}
func (DisconnectEvent) event()           {}
func (FrameBatchEvent) event()           {}
func (ResultEvent) event()               {}
func (OpaqueEvent) event()               {}

// Decode parses one inbound transport frame into a typed event. Recognition
// order: keep-alive, control signals, an inner message embedded directly in
// the frame, then a "message" command whose data field is a JSON string.
// Frames that carry none of these decode to (nil, nil) and are ignored.
func Decode(data []byte) (Event, error) {
	if len(data) == 0 {
		return nil, errEmptyMessage
	}

	var outer envelope
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}

	switch outer.Type {
	case typePing:
		return PingEvent{}, nil
	case typeRejectSubscription:
		return SubscriptionRejectedEvent{}, nil
	case typeDisconnect:
		return DisconnectEvent{Reason: outer.Reason}, nil
	}

	if len(outer.Message) > 0 {
		return decodeInner(outer.Message)
	}

	if outer.Command == "message" && len(outer.Data) > 0 {
		var nested string
		if err := json.Unmarshal(outer.Data, &nested); err != nil {
			return nil, fmt.Errorf("parsing data field: %w", err)
		}
		return decodeInner([]byte(nested))
	}

	return nil, nil
}

// DecodeInner parses a bare inner message, bypassing the outer envelope.
// Used by symmetric encode/decode harnesses and direct-embed frames.
func DecodeInner(data []byte) (Event, error) {
	return decodeInner(data)
}

func decodeInner(data []byte) (Event, error) {
	var inner innerMessage
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil, fmt.Errorf("parsing inner message: %w", err)
	}

	// A result is any message carrying status, id, and an explicit
	// (possibly null) result field.
	if inner.Status != nil && inner.ID != "" && inner.Result != nil {
		return ResultEvent{
			ID:      inner.ID,
			Status:  *inner.Status,
			Display: stringifyResult(inner.Result),
			Raw:     inner.Result,
		}, nil
	}

	switch inner.Command {
	case "":
		return nil, nil
	case CommandScreenFrames:
		batch, err := decodeFrameBatch(inner.ID, inner.Payload)
		if err != nil {
			return nil, err
		}
		return FrameBatchEvent{Batch: batch}, nil
	default:
		return OpaqueEvent{Command: inner.Command, Payload: inner.Payload}, nil
	}
}

// stringifyResult renders a result value for the result log: strings pass
// through, objects pretty-print, anything else falls back to fmt. A failure
// at any step degrades to the empty string rather than an error.
func stringifyResult(raw json.RawMessage) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	switch v := value.(type) {
	case nil:
		// A null result means the command completed with no payload.
		// Render it as an empty output line, not the literal "null".
		return ""
	case string:
		return v
	case map[string]any, []any:
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return ""
		}
		return string(pretty)
	default:
		return fmt.Sprint(v)
	}
}
