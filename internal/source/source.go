// Package source supervises long-lived market-data subscriptions and turns
// raw frames into unified market events.
package source

import (
	"context"

	"sniper-core/internal/models"
)

// Conn is one live connection to a source. gorilla/websocket satisfies it
// through wsConn; tests plug in fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a connection to a URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Adapter describes one source: where to connect, what to send after the
// handshake, and how to parse its frames.
type Adapter interface {
	// Name is the source tag stamped on emitted events.
	Name() string
	// URL is the websocket endpoint.
	URL() string
	// SubscribeFrames are sent in order once the connection is up.
	SubscribeFrames() [][]byte
	// Parse converts a frame into events. Frames it does not recognise
	// return ok=false and surface as RawMessage; they are never dropped
	// silently.
	Parse(frame []byte, nowMs int64) (events []models.MarketEvent, ok bool)
}
