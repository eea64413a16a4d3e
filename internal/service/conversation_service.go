package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/errcode"
)

// ConversationService handles conversation-related business logic
type ConversationService struct {
	convRepo  repository.ConversationRepo
	publisher EventPublisher
	now       func() int64
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo: repos.Conversation,
		now:      entity.NowUnixMilli,
	}
}

// SetPublisher sets the event publisher
func (s *ConversationService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// publishUpdated reloads the conversation and publishes it to subscribers
func (s *ConversationService) publishUpdated(ctx context.Context, conversationId string) {
	if s.publisher == nil {
		return
	}
	conv, err := s.convRepo.Get(ctx, conversationId)
	if err != nil {
		log.CtxWarn(ctx, "reload conversation failed, event skipped: conversation_id=%s, error=%v", conversationId, err)
		return
	}
	s.publisher.Publish(&entity.Event{
		Type:           entity.EventConversationUpdated,
		ConversationId: conv.Id,
		Id:             conv.Id,
		Timestamp:      conv.LastUpdated,
		Conversation:   conv.ToConversationInfo(),
	})
}

// CreateConversationRequest represents create conversation request.
// Absent participants and lastMessage leave an existing document untouched.
type CreateConversationRequest struct {
	Id           string                 `json:"id"`
	Participants []string               `json:"participants"`
	LastMessage  *string                `json:"lastMessage"`
	Title        string                 `json:"title"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// CreateConversation merge-writes the conversation keyed by req.Id and returns the id.
// Calling it again with the same id updates the document instead of failing.
func (s *ConversationService) CreateConversation(ctx context.Context, req *CreateConversationRequest) (string, error) {
	if req.Id == "" {
		return "", errcode.ErrIdRequired
	}

	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.Title != "" {
		if _, ok := metadata[constant.MetadataTitleKey]; !ok {
			metadata[constant.MetadataTitleKey] = req.Title
		}
	}

	in := &entity.ConversationUpsert{
		Id:           req.Id,
		Participants: req.Participants,
		LastMessage:  req.LastMessage,
		Metadata:     metadata,
		Now:          s.now(),
	}
	if err := s.convRepo.Upsert(ctx, in); err != nil {
		log.CtxError(ctx, "upsert conversation failed: conversation_id=%s, error=%v", req.Id, err)
		return "", err
	}

	log.CtxDebug(ctx, "conversation upserted: conversation_id=%s, participants=%d", req.Id, len(req.Participants))
	s.publishUpdated(ctx, req.Id)
	return req.Id, nil
}

// ListConversations lists the conversations of userId, most recent first.
// An empty userId lists every conversation.
func (s *ConversationService) ListConversations(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	var (
		convs []*entity.Conversation
		err   error
	)
	if userId != "" {
		convs, err = s.convRepo.ListByParticipant(ctx, userId)
	} else {
		convs, err = s.convRepo.ListAll(ctx)
	}
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, err
	}

	result := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		result = append(result, conv.ToConversationInfo())
	}
	return result, nil
}

// GetConversation gets a conversation by id
func (s *ConversationService) GetConversation(ctx context.Context, conversationId string) (*entity.ConversationInfo, error) {
	conv, err := s.convRepo.Get(ctx, conversationId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errcode.ErrConvNotFound
		}
		log.CtxError(ctx, "get conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, err
	}
	return conv.ToConversationInfo(), nil
}

// UpdateConversationRequest represents update conversation request
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateTitle sets the title of an existing conversation
func (s *ConversationService) UpdateTitle(ctx context.Context, conversationId string, req *UpdateConversationRequest) error {
	if conversationId == "" {
		return errcode.ErrIdRequired
	}
	if req.Title == "" {
		return errcode.ErrTitleRequired
	}

	if err := s.convRepo.UpdateTitle(ctx, conversationId, req.Title, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errcode.ErrConvNotFound
		}
		log.CtxError(ctx, "update conversation title failed: conversation_id=%s, error=%v", conversationId, err)
		return err
	}
	s.publishUpdated(ctx, conversationId)
	return nil
}

// DeleteConversation deletes the conversation document. Its messages are kept.
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationId string) error {
	if conversationId == "" {
		return errcode.ErrIdRequired
	}
	if err := s.convRepo.Delete(ctx, conversationId); err != nil {
		log.CtxError(ctx, "delete conversation failed: conversation_id=%s, error=%v", conversationId, err)
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(&entity.Event{
			Type:           entity.EventConversationDeleted,
			ConversationId: conversationId,
			Id:             conversationId,
			Timestamp:      s.now(),
		})
	}
	return nil
}
