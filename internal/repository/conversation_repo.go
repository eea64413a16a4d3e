package repository

import (
	"context"

	"github.com/mbeoliero/chatline/internal/entity"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo interface {
	// Upsert merge-writes the conversation keyed by in.Id, creating it if missing.
	// createdAt is only set on creation.
	Upsert(ctx context.Context, in *entity.ConversationUpsert) error

	Get(ctx context.Context, id string) (*entity.Conversation, error)

	// ListByParticipant returns conversations whose participants contain userId,
	// most recently updated first
	ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error)

	ListAll(ctx context.Context) ([]*entity.Conversation, error)

	// UpdateTitle sets metadata.title and lastUpdated on an existing conversation
	UpdateTitle(ctx context.Context, id, title string, now int64) error

	// UpdateLastMessage sets the denormalized summary on an existing conversation
	UpdateLastMessage(ctx context.Context, id, lastMessage string, now int64) error

	// Delete removes the conversation document only. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}
