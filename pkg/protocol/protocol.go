// Package protocol implements the two-layer wire envelope spoken with the
// command gateway. The outer layer is the transport's pub/sub framing with a
// JSON-string identifier and data field; the inner layer is the application
// message the channel controls. Inbound frames decode into a closed set of
// typed events with an opaque fallback for unknown commands.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChannelName is the logical channel multiplexed over the transport.
const ChannelName = "CommandChannel"

// Outbound commands understood by the remote agent, grouped by namespace.
const (
	CommandMouseMove       = "mouse.move"
	CommandMouseClick      = "mouse.click"
	CommandMouseScroll     = "mouse.scroll"
	CommandKeyPress        = "keyboard.press"
	CommandKeyType         = "keyboard.type"
	CommandTerminalExecute = "terminal.execute"
	CommandListProcesses   = "terminal.listProcesses"
	CommandKillProcess     = "terminal.killProcess"
	CommandScreenFrames    = "screen.frame_batch"
	CommandPowerShutdown   = "power.shutdown"
	CommandPowerRestart    = "power.restart"
)

// Outer envelope control fields (server to client).
const (
	typePing               = "ping"
	typeRejectSubscription = "reject_subscription"
	typeDisconnect         = "disconnect"
)

var errEmptyMessage = errors.New("empty message")

// Action is an outbound command staged by the UI.
type Action struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// envelope is the outer transport frame, both directions.
type envelope struct {
	Type       string          `json:"type,omitempty"`
	Command    string          `json:"command,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// innerMessage is the application-level payload nested inside the envelope.
type innerMessage struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Status  *string         `json:"status,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func channelIdentifier() (string, error) {
	raw, err := json.Marshal(map[string]string{"channel": ChannelName})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EncodeSubscribe builds the subscribe handshake sent right after the
// transport opens.
func EncodeSubscribe() ([]byte, error) {
	identifier, err := channelIdentifier()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"command":    "subscribe",
		"identifier": identifier,
	})
}

// EncodeAction wraps an action into the double-encoded wire envelope: the
// inner message is serialized on its own and embedded as a JSON string in the
// data field of the outer frame.
func EncodeAction(action Action) ([]byte, error) {
	if action.Type == "" {
		return nil, errors.New("action type is required")
	}
	identifier, err := channelIdentifier()
	if err != nil {
		return nil, err
	}

	inner := map[string]any{
		"command": action.Type,
	}
	if action.ID != "" {
		inner["id"] = action.ID
	}
	if action.Payload != nil {
		inner["payload"] = action.Payload
	}
	data, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("encoding inner message: %w", err)
	}

	return json.Marshal(map[string]string{
		"command":    "message",
		"identifier": identifier,
		"data":       string(data),
	})
}
