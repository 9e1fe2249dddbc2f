package channel

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport surface the channel drives. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens a transport connection to the gateway URL, which already
// carries the access_token and device_id query parameters.
type Dialer func(ctx context.Context, rawURL string) (Conn, error)

// WebsocketDialer dials with the default gorilla dialer.
func WebsocketDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
