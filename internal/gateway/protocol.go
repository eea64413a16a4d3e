package gateway

import (
	"github.com/bytedance/sonic"

	"github.com/mbeoliero/chatline/internal/entity"
)

// WSRequest represents a client frame
type WSRequest struct {
	Action         string `json:"action"`
	ConversationId string `json:"conversationId"`
}

// ackEvent builds the reply for a processed client action
func ackEvent(typ entity.EventType, conversationId string, err error) *entity.Event {
	event := &entity.Event{
		Type:           typ,
		ConversationId: conversationId,
		Timestamp:      entity.NowUnixMilli(),
	}
	if err != nil {
		event.Type = EventError
		event.Error = err.Error()
	}
	return event
}

// Encode encodes data to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

// Decode decodes JSON bytes to struct
func Decode(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}
