package entity

// Message represents a message document
type Message struct {
	Id             string
	ConversationId string
	SenderId       string
	Text           string
	Timestamp      int64
	Status         int32
	ReplyToId      *string
	ReplyToName    *string
	ReplyToText    *string
}

// Clone returns a deep copy of the message
func (m *Message) Clone() *Message {
	out := *m
	out.ReplyToId = cloneString(m.ReplyToId)
	out.ReplyToName = cloneString(m.ReplyToName)
	out.ReplyToText = cloneString(m.ReplyToText)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// MessageInfo represents message info for API response.
// Reply fields are rendered as null when absent.
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

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		SenderId:       m.SenderId,
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		Status:         m.Status,
		ReplyToId:      m.ReplyToId,
		ReplyToName:    m.ReplyToName,
		ReplyToText:    m.ReplyToText,
	}
}
