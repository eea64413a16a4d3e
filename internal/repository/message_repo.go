package repository

import (
	"context"

	"github.com/mbeoliero/chatline/internal/entity"
)

// MessageRepo is the repository for message operations
type MessageRepo interface {
	// Create stores msg and sets msg.Id to the store-assigned id
	Create(ctx context.Context, msg *entity.Message) error

	Get(ctx context.Context, id string) (*entity.Message, error)

	// List returns up to limit messages of the conversation ordered by timestamp
	// descending. A positive before only returns messages strictly older than it.
	List(ctx context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error)

	UpdateText(ctx context.Context, id, text string) error

	// Delete removes the message. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}
