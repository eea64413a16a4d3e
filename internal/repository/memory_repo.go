package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

func init() {
	Register(constant.DriverMemory, openMemory)
}

func openMemory(_ context.Context, cfg *config.Config) (*Repositories, error) {
	gen, err := newIDGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return NewMemoryRepositories(gen), nil
}

// NewMemoryRepositories creates process-local repositories, used in tests and local runs
func NewMemoryRepositories(gen idgen.IDGenerator) *Repositories {
	store := &memoryStore{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string]*entity.Message),
	}
	return &Repositories{
		Driver:       constant.DriverMemory,
		Conversation: &memoryConversationRepo{store: store},
		Message:      &memoryMessageRepo{store: store, gen: gen},
	}
}

type memoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	messages      map[string]*entity.Message
}

type memoryConversationRepo struct {
	store *memoryStore
}

func (r *memoryConversationRepo) Upsert(_ context.Context, in *entity.ConversationUpsert) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.conversations[in.Id] = in.Merge(r.store.conversations[in.Id])
	return nil
}

func (r *memoryConversationRepo) Get(_ context.Context, id string) (*entity.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (r *memoryConversationRepo) ListByParticipant(_ context.Context, userId string) ([]*entity.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	convs := make([]*entity.Conversation, 0)
	for _, conv := range r.store.conversations {
		if conv.HasParticipant(userId) {
			convs = append(convs, conv.Clone())
		}
	}
	sortByLastUpdated(convs)
	return convs, nil
}

func (r *memoryConversationRepo) ListAll(_ context.Context) ([]*entity.Conversation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	convs := make([]*entity.Conversation, 0, len(r.store.conversations))
	for _, conv := range r.store.conversations {
		convs = append(convs, conv.Clone())
	}
	sortByLastUpdated(convs)
	return convs, nil
}

func (r *memoryConversationRepo) UpdateTitle(_ context.Context, id, title string, now int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if conv.Metadata == nil {
		conv.Metadata = make(map[string]interface{})
	}
	conv.Metadata[constant.MetadataTitleKey] = title
	conv.LastUpdated = now
	return nil
}

func (r *memoryConversationRepo) UpdateLastMessage(_ context.Context, id, lastMessage string, now int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.LastMessage = lastMessage
	conv.LastUpdated = now
	return nil
}

func (r *memoryConversationRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.conversations, id)
	return nil
}

type memoryMessageRepo struct {
	store *memoryStore
	gen   idgen.IDGenerator
}

func (r *memoryMessageRepo) Create(_ context.Context, msg *entity.Message) error {
	id, err := r.gen.NextID()
	if err != nil {
		return err
	}
	msg.Id = id

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.messages[id] = msg.Clone()
	return nil
}

func (r *memoryMessageRepo) Get(_ context.Context, id string) (*entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	msg, ok := r.store.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg.Clone(), nil
}

func (r *memoryMessageRepo) List(_ context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error) {
	r.store.mu.RLock()
	msgs := make([]*entity.Message, 0)
	for _, msg := range r.store.messages {
		if msg.ConversationId != conversationId {
			continue
		}
		if before > 0 && msg.Timestamp >= before {
			continue
		}
		msgs = append(msgs, msg.Clone())
	}
	r.store.mu.RUnlock()

	sortByTimestampDesc(msgs)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (r *memoryMessageRepo) UpdateText(_ context.Context, id, text string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msg, ok := r.store.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Text = text
	return nil
}

func (r *memoryMessageRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.messages, id)
	return nil
}

// sortByLastUpdated orders conversations newest first, ties broken by id
func sortByLastUpdated(convs []*entity.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].LastUpdated != convs[j].LastUpdated {
			return convs[i].LastUpdated > convs[j].LastUpdated
		}
		return convs[i].Id < convs[j].Id
	})
}

// sortByTimestampDesc orders messages newest first, ties broken by id
func sortByTimestampDesc(msgs []*entity.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp > msgs[j].Timestamp
		}
		return msgs[i].Id > msgs[j].Id
	})
}
