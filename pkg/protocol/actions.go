package protocol

import (
	"github.com/google/uuid"
)

// NewAction builds an Action with a generated correlation id. Ids must be
// unique across in-flight commands or result correlation collides.
func NewAction(commandType string, payload map[string]any) Action {
	return Action{
		ID:      uuid.NewString(),
		Type:    commandType,
		Payload: payload,
	}
}

// MouseMove positions the remote cursor.
func MouseMove(x, y int) Action {
	return NewAction(CommandMouseMove, map[string]any{"x": x, "y": y})
}

// MouseClick clicks the given button ("left", "right", "middle").
func MouseClick(button string) Action {
	return NewAction(CommandMouseClick, map[string]any{"button": button})
}

// KeyPress presses a single named key.
func KeyPress(key string) Action {
	return NewAction(CommandKeyPress, map[string]any{"key": key})
}

// TypeText types a string on the remote keyboard.
func TypeText(text string) Action {
	return NewAction(CommandKeyType, map[string]any{"text": text})
}

// TerminalExecute runs a shell command on the remote device.
func TerminalExecute(command string) Action {
	return NewAction(CommandTerminalExecute, map[string]any{"command": command})
}

// ListProcesses requests the remote process table.
func ListProcesses() Action {
	return NewAction(CommandListProcesses, nil)
}

// KillProcess terminates a remote process by pid.
func KillProcess(pid int64) Action {
	return NewAction(CommandKillProcess, map[string]any{"pid": pid})
}

// PowerShutdown shuts the remote device down.
func PowerShutdown() Action {
	return NewAction(CommandPowerShutdown, nil)
}

// PowerRestart reboots the remote device.
func PowerRestart() Action {
	return NewAction(CommandPowerRestart, nil)
}
