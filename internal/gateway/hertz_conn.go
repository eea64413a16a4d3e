package gateway

import (
	"sync"
	"time"

	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// hertzConn implements ClientConn using hertz-contrib/websocket
type hertzConn struct {
	conn       *websocket.Conn
	writeChan  chan []byte
	writeMu    sync.Mutex
	closeOnce  sync.Once
	closed     bool
	pingPeriod time.Duration
	pongWait   time.Duration
}

// newHertzConn wraps an upgraded connection and starts its writer
func newHertzConn(conn *websocket.Conn, maxMsgSize int64, pongWait, pingPeriod time.Duration) *hertzConn {
	c := &hertzConn{
		conn:       conn,
		writeChan:  make(chan []byte, writeChanSize),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}

	conn.SetReadLimit(maxMsgSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writeLoop()
	return c
}

// writeLoop is the only goroutine writing to the socket
func (c *hertzConn) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		if r := recover(); r != nil {
			log.Debug("ws write loop recovered: %v", r)
		}
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.writeChan:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.Debug("ws write error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug("ws ping error: %v", err)
				return
			}
		}
	}
}

func (c *hertzConn) write(messageType int, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrConnClosed
		}
	}()

	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads a message from the connection
func (c *hertzConn) ReadMessage() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	_, message, err := c.conn.ReadMessage()
	return message, err
}

// WriteMessage queues a message to be written
func (c *hertzConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeChan <- data:
		return nil
	default:
		return ErrWriteChannelFull
	}
}

// Close closes the connection
func (c *hertzConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeChan)
		c.writeMu.Unlock()
	})
	return nil
}

// SetReadDeadline sets the read deadline
func (c *hertzConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
