package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/errcode"
)

// EventPublisher delivers change events to realtime subscribers
type EventPublisher interface {
	Publish(event *entity.Event)
}

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo      repository.MessageRepo
	convRepo     repository.ConversationRepo
	publisher    EventPublisher
	now          func() int64
	defaultLimit int
	maxLimit     int
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories, cfg *config.PaginationConfig) *MessageService {
	s := &MessageService{
		msgRepo:      repos.Message,
		convRepo:     repos.Conversation,
		now:          entity.NowUnixMilli,
		defaultLimit: constant.DefaultPageLimit,
		maxLimit:     constant.MaxPageLimit,
	}
	if cfg != nil && cfg.DefaultLimit > 0 {
		s.defaultLimit = cfg.DefaultLimit
	}
	if cfg != nil && cfg.MaxLimit > 0 {
		s.maxLimit = cfg.MaxLimit
	}
	return s
}

// SetPublisher sets the event publisher
func (s *MessageService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ConversationId string  `json:"conversationId"`
	SenderId       string  `json:"senderId"`
	Text           string  `json:"text"`
	ReplyToId      *string `json:"replyToId"`
	ReplyToName    *string `json:"replyToName"`
	ReplyToText    *string `json:"replyToText"`
}

// SendMessage stores a message and then refreshes the conversation summary.
// An empty text is rejected like a missing one.
// The two writes are independent: when the summary write fails the message
// stays stored and the error is returned.
func (s *MessageService) SendMessage(ctx context.Context, req *SendMessageRequest) (string, error) {
	if req.ConversationId == "" || req.SenderId == "" || req.Text == "" {
		return "", errcode.ErrMissingFields
	}

	msg := &entity.Message{
		ConversationId: req.ConversationId,
		SenderId:       req.SenderId,
		Text:           req.Text,
		Timestamp:      s.now(),
		Status:         constant.MsgStatusSent,
		ReplyToId:      req.ReplyToId,
		ReplyToName:    req.ReplyToName,
		ReplyToText:    req.ReplyToText,
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		log.CtxError(ctx, "create message failed: conversation_id=%s, sender_id=%s, error=%v", req.ConversationId, req.SenderId, err)
		return "", err
	}

	err := s.convRepo.UpdateLastMessage(ctx, msg.ConversationId, msg.Text, msg.Timestamp)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		log.CtxWarn(ctx, "conversation summary skipped, conversation not found: conversation_id=%s, msg_id=%s", msg.ConversationId, msg.Id)
	default:
		log.CtxError(ctx, "update conversation summary failed: conversation_id=%s, msg_id=%s, error=%v", msg.ConversationId, msg.Id, err)
		return "", err
	}

	if s.publisher != nil {
		s.publisher.Publish(&entity.Event{
			Type:           entity.EventMessageCreated,
			ConversationId: msg.ConversationId,
			Id:             msg.Id,
			Timestamp:      msg.Timestamp,
			Message:        msg.ToMessageInfo(),
		})
	}
	return msg.Id, nil
}

// ListMessagesRequest represents list messages request.
// LastTimestamp is the timestamp of the oldest message of the previous page, 0 for the first page.
type ListMessagesRequest struct {
	ConversationId string
	Limit          int
	LastTimestamp  int64
}

// ListMessages lists a page of messages, newest first
func (s *MessageService) ListMessages(ctx context.Context, req *ListMessagesRequest) ([]*entity.MessageInfo, error) {
	if req.ConversationId == "" {
		return nil, errcode.ErrConversationIdRequired
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	msgs, err := s.msgRepo.List(ctx, req.ConversationId, limit, req.LastTimestamp)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%s, last_timestamp=%d, error=%v", req.ConversationId, req.LastTimestamp, err)
		return nil, err
	}

	result := make([]*entity.MessageInfo, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, msg.ToMessageInfo())
	}
	return result, nil
}

// GetMessage gets a message by id
func (s *MessageService) GetMessage(ctx context.Context, msgId string) (*entity.MessageInfo, error) {
	msg, err := s.msgRepo.Get(ctx, msgId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errcode.ErrMessageNotFound
		}
		log.CtxError(ctx, "get message failed: msg_id=%s, error=%v", msgId, err)
		return nil, err
	}
	return msg.ToMessageInfo(), nil
}

// EditMessageRequest represents edit message request
type EditMessageRequest struct {
	Text string `json:"text"`
}

// EditMessage replaces the text of an existing message
func (s *MessageService) EditMessage(ctx context.Context, msgId string, req *EditMessageRequest) error {
	if msgId == "" {
		return errcode.ErrIdRequired
	}
	if req.Text == "" {
		return errcode.ErrTextRequired
	}

	if err := s.msgRepo.UpdateText(ctx, msgId, req.Text); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errcode.ErrMessageNotFound
		}
		log.CtxError(ctx, "edit message failed: msg_id=%s, error=%v", msgId, err)
		return err
	}

	if s.publisher != nil {
		msg, err := s.msgRepo.Get(ctx, msgId)
		if err != nil {
			log.CtxWarn(ctx, "reload edited message failed, event skipped: msg_id=%s, error=%v", msgId, err)
			return nil
		}
		s.publisher.Publish(&entity.Event{
			Type:           entity.EventMessageUpdated,
			ConversationId: msg.ConversationId,
			Id:             msg.Id,
			Timestamp:      s.now(),
			Message:        msg.ToMessageInfo(),
		})
	}
	return nil
}

// DeleteMessage deletes a message
func (s *MessageService) DeleteMessage(ctx context.Context, msgId string) error {
	if msgId == "" {
		return errcode.ErrIdRequired
	}

	// the conversation id is only known before the document is gone
	var deleted *entity.Message
	if s.publisher != nil {
		deleted, _ = s.msgRepo.Get(ctx, msgId)
	}

	if err := s.msgRepo.Delete(ctx, msgId); err != nil {
		log.CtxError(ctx, "delete message failed: msg_id=%s, error=%v", msgId, err)
		return err
	}

	if deleted != nil {
		s.publisher.Publish(&entity.Event{
			Type:           entity.EventMessageDeleted,
			ConversationId: deleted.ConversationId,
			Id:             deleted.Id,
			Timestamp:      s.now(),
		})
	}
	return nil
}
