package entity

// EventType identifies a change pushed to realtime subscribers
type EventType string

// Change events
const (
	EventMessageCreated      EventType = "message.created"
	EventMessageUpdated      EventType = "message.updated"
	EventMessageDeleted      EventType = "message.deleted"
	EventConversationUpdated EventType = "conversation.updated"
	EventConversationDeleted EventType = "conversation.deleted"
)

// Event is a change to a conversation or one of its messages.
// Id is the message id for message events and the conversation id otherwise.
type Event struct {
	Type           EventType         `json:"type"`
	ConversationId string            `json:"conversationId"`
	Id             string            `json:"id,omitempty"`
	Timestamp      int64             `json:"timestamp"`
	Message        *MessageInfo      `json:"message,omitempty"`
	Conversation   *ConversationInfo `json:"conversation,omitempty"`
	Error          string            `json:"error,omitempty"`
}
