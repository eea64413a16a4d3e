package gateway

import "time"

// ClientConn is the transport behind a subscriber. Writes are queued and
// flushed by a single writer goroutine.
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
}
