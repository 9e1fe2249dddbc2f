// Package permission resolves and enforces the capability set gating which
// command classes a session may send to a device.
package permission

import (
	"strings"
)

// Set is the capability snapshot for one (user, device) pair.
type Set struct {
	SeeScreen      bool `json:"seeScreen"`
	SeeSystemInfo  bool `json:"seeSystemInfo"`
	AccessMouse    bool `json:"accessMouse"`
	AccessKeyboard bool `json:"accessKeyboard"`
	AccessTerminal bool `json:"accessTerminal"`
	ManagePower    bool `json:"managePower"`
}

// AnyInput reports whether any input device capability is granted.
func (s Set) AnyInput() bool {
	return s.AccessMouse || s.AccessKeyboard
}

// AllGranted is the owner capability set.
func AllGranted() Set {
	return Set{
		SeeScreen:      true,
		SeeSystemInfo:  true,
		AccessMouse:    true,
		AccessKeyboard: true,
		AccessTerminal: true,
		ManagePower:    true,
	}
}

// None is the fail-closed capability set.
func None() Set {
	return Set{}
}

// Namespace prefixes of the known command families.
const (
	NamespaceMouse    = "mouse."
	NamespaceKeyboard = "keyboard."
	NamespaceTerminal = "terminal."
	NamespaceScreen   = "screen."
	NamespacePower    = "power."
)

// Policy tunes gating for command types outside the known namespaces.
type Policy struct {
	// Strict rejects unknown namespaces. The default (false) allows them
	// through for forward compatibility with newer agents.
	Strict bool
}

// CanSend reports whether a command of the given type may be sent under the
// capability set. A nil set means permissions have not resolved yet and every
// command is blocked, owner or not.
func (p Policy) CanSend(set *Set, isOwner bool, commandType string) bool {
	if set == nil {
		return false
	}
	if isOwner {
		return true
	}
	switch {
	case strings.HasPrefix(commandType, NamespaceMouse):
		return set.AccessMouse
	case strings.HasPrefix(commandType, NamespaceKeyboard):
		return set.AccessKeyboard
	case strings.HasPrefix(commandType, NamespaceTerminal):
		return set.AccessTerminal
	case strings.HasPrefix(commandType, NamespaceScreen):
		return set.SeeScreen
	case strings.HasPrefix(commandType, NamespacePower):
		return set.ManagePower
	default:
		return !p.Strict
	}
}
