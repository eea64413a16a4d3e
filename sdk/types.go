package sdk

// StatusResponse is returned by write endpoints
type StatusResponse struct {
	Status string `json:"status"`
	Id     string `json:"id,omitempty"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationInfo represents conversation info. Timestamps are unix milliseconds.
type ConversationInfo struct {
	Id           string                 `json:"id"`
	Participants []string               `json:"participants"`
	LastMessage  string                 `json:"lastMessage"`
	LastUpdated  int64                  `json:"lastUpdated,omitempty"`
	CreatedAt    int64                  `json:"createdAt,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// Title returns metadata.title when it is a string
func (c *ConversationInfo) Title() string {
	title, _ := c.Metadata["title"].(string)
	return title
}

// MessageInfo represents message info. Timestamp is unix milliseconds.
type MessageInfo struct {
	Id             string  `json:"id"`
	ConversationId string  `json:"conversationId"`
	SenderId       string  `json:"senderId"`
	Text           string  `json:"text"`
	Timestamp      int64   `json:"timestamp,omitempty"`
	Status         int32   `json:"status"`
	ReplyToId      *string `json:"replyToId"`
	ReplyToName    *string `json:"replyToName"`
	ReplyToText    *string `json:"replyToText"`
}

// CreateConversationRequest represents create conversation request
type CreateConversationRequest struct {
	Id           string                 `json:"id"`
	Participants []string               `json:"participants,omitempty"`
	LastMessage  *string                `json:"lastMessage,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateConversationRequest represents update conversation request
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string  `json:"conversationId"`
	SenderId       string  `json:"senderId"`
	Text           string  `json:"text"`
	ReplyToId      *string `json:"replyToId,omitempty"`
	ReplyToName    *string `json:"replyToName,omitempty"`
	ReplyToText    *string `json:"replyToText,omitempty"`
}

// ListMessagesRequest represents list messages request.
// Zero Limit and LastTimestamp are not sent.
type ListMessagesRequest struct {
	ConversationId string
	Limit          int
	LastTimestamp  int64
}

// EditMessageRequest represents edit message request
type EditMessageRequest struct {
	Text string `json:"text"`
}

// Event types delivered over Subscribe
const (
	EventMessageCreated      = "message.created"
	EventMessageUpdated      = "message.updated"
	EventMessageDeleted      = "message.deleted"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventSubscribed          = "subscribed"
	EventUnsubscribed        = "unsubscribed"
	EventError               = "error"
)

// Event is a realtime change pushed by the server
type Event struct {
	Type           string            `json:"type"`
	ConversationId string            `json:"conversationId"`
	Id             string            `json:"id,omitempty"`
	Timestamp      int64             `json:"timestamp"`
	Message        *MessageInfo      `json:"message,omitempty"`
	Conversation   *ConversationInfo `json:"conversation,omitempty"`
	Error          string            `json:"error,omitempty"`
}
