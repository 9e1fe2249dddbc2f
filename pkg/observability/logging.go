package observability

import (
	"log/slog"
	"os"
)

// Logger is a structured logger shared by the channel core components.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger tagged with the owning component.
func NewLogger(component string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)

	logger := slog.New(handler).With(
		slog.String("component", component),
	)

	return &Logger{Logger: logger}
}

// WithDevice returns a logger carrying the device the session is bound to.
func (l *Logger) WithDevice(deviceID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("device_id", deviceID)),
	}
}

// WithSession returns a logger carrying the session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("session_id", sessionID)),
	}
}
