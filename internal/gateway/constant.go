package gateway

import (
	"time"

	"github.com/mbeoliero/chatline/internal/entity"
)

// Client actions
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Acknowledgement event types sent back to the client that issued an action
const (
	EventSubscribed   entity.EventType = "subscribed"
	EventUnsubscribed entity.EventType = "unsubscribed"
	EventError        entity.EventType = "error"
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 4096
)

const (
	// writeChanSize is the per-connection outbound buffer
	writeChanSize = 256

	// MaxSubscriptions caps the conversations a single connection follows
	MaxSubscriptions = 100
)

// Query parameter keys
const (
	QueryConversationId = "conversationId"
	QueryUserId         = "userId"
)
