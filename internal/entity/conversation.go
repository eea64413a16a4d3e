package entity

import "github.com/mbeoliero/chatline/pkg/constant"

// Conversation represents a conversation document
type Conversation struct {
	Id           string
	Participants []string
	LastMessage  string
	LastUpdated  int64
	CreatedAt    int64
	Metadata     map[string]interface{}
}

// Title returns metadata.title when it is a string
func (c *Conversation) Title() string {
	title, _ := c.Metadata[constant.MetadataTitleKey].(string)
	return title
}

// HasParticipant reports whether userId is one of the participants
func (c *Conversation) HasParticipant(userId string) bool {
	for _, p := range c.Participants {
		if p == userId {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or maps with c
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Participants != nil {
		out.Participants = append([]string{}, c.Participants...)
	}
	out.Metadata = CopyMetadata(c.Metadata)
	return &out
}

// ConversationUpsert describes a merge-write of a conversation.
// Nil fields are left untouched on an existing document and defaulted on a new one.
type ConversationUpsert struct {
	Id           string
	Participants []string
	LastMessage  *string
	Metadata     map[string]interface{}
	Now          int64
}

// Merge applies the upsert on top of existing and returns the resulting document.
// existing may be nil, in which case a new document is built with createdAt = Now.
// existing is not modified.
func (u *ConversationUpsert) Merge(existing *Conversation) *Conversation {
	out := &Conversation{
		Id:           u.Id,
		Participants: []string{},
		LastMessage:  constant.DefaultLastMessage,
		CreatedAt:    u.Now,
		Metadata:     map[string]interface{}{},
	}
	if existing != nil {
		out.Participants = append([]string{}, existing.Participants...)
		out.LastMessage = existing.LastMessage
		out.CreatedAt = existing.CreatedAt
		MergeMetadata(out.Metadata, existing.Metadata)
	}

	if u.Participants != nil {
		out.Participants = append([]string{}, u.Participants...)
	}
	if u.LastMessage != nil {
		out.LastMessage = *u.LastMessage
	}
	MergeMetadata(out.Metadata, u.Metadata)
	out.LastUpdated = u.Now

	return out
}

// ConversationInfo represents conversation info for API response
type ConversationInfo struct {
	Id           string                 `json:"id"`
	Participants []string               `json:"participants"`
	LastMessage  string                 `json:"lastMessage"`
	LastUpdated  int64                  `json:"lastUpdated,omitempty"`
	CreatedAt    int64                  `json:"createdAt,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ToConversationInfo converts Conversation to ConversationInfo
func (c *Conversation) ToConversationInfo() *ConversationInfo {
	info := &ConversationInfo{
		Id:           c.Id,
		Participants: c.Participants,
		LastMessage:  c.LastMessage,
		LastUpdated:  c.LastUpdated,
		CreatedAt:    c.CreatedAt,
		Metadata:     c.Metadata,
	}
	if info.Participants == nil {
		info.Participants = []string{}
	}
	if info.Metadata == nil {
		info.Metadata = map[string]interface{}{}
	}
	return info
}
