package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/mbeoliero/kit/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/credential"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
)

const firestoreEmulatorEnv = "FIRESTORE_EMULATOR_HOST"

func init() {
	Register(constant.DriverFirestore, openFirestore)
}

func openFirestore(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	projectID := cfg.Firestore.ProjectID
	var opts []option.ClientOption

	creds, err := credential.Load(cfg.Firestore.CredentialsEnv, cfg.Firestore.CredentialsFile)
	switch {
	case err == nil:
		opts = append(opts, option.WithCredentialsJSON(creds.JSON))
		if projectID == "" {
			projectID = creds.ProjectID
		}
		log.CtxInfo(ctx, "firestore credentials loaded: source=%s, client_email=%s", creds.Source, creds.ClientEmail)
	case errors.Is(err, credential.ErrNotFound) && os.Getenv(firestoreEmulatorEnv) != "":
		log.CtxWarn(ctx, "no firestore credentials, using emulator at %s", os.Getenv(firestoreEmulatorEnv))
	default:
		return nil, err
	}
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is not configured")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return newFirestoreRepositories(client, cfg), nil
}

func newFirestoreRepositories(client *firestore.Client, cfg *config.Config) *Repositories {
	convs := client.Collection(cfg.Store.ConversationCollection)
	msgs := client.Collection(cfg.Store.MessageCollection)
	return &Repositories{
		Driver:       constant.DriverFirestore,
		Conversation: &firestoreConversationRepo{client: client, coll: convs},
		Message:      &firestoreMessageRepo{coll: msgs},
		ping: func(ctx context.Context) error {
			iter := convs.Limit(1).Documents(ctx)
			defer iter.Stop()
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		},
		close: client.Close,
	}
}

type firestoreConversation struct {
	Participants []string               `firestore:"participants"`
	LastMessage  string                 `firestore:"lastMessage"`
	LastUpdated  time.Time              `firestore:"lastUpdated"`
	CreatedAt    time.Time              `firestore:"createdAt"`
	Metadata     map[string]interface{} `firestore:"metadata"`
}

func (d *firestoreConversation) toEntity(id string) *entity.Conversation {
	return &entity.Conversation{
		Id:           id,
		Participants: d.Participants,
		LastMessage:  d.LastMessage,
		LastUpdated:  entity.TimeToMillis(d.LastUpdated),
		CreatedAt:    entity.TimeToMillis(d.CreatedAt),
		Metadata:     d.Metadata,
	}
}

type firestoreMessage struct {
	ConversationId string    `firestore:"conversationId"`
	SenderId       string    `firestore:"senderId"`
	Text           string    `firestore:"text"`
	Timestamp      time.Time `firestore:"timestamp"`
	Status         int32     `firestore:"status"`
	ReplyToId      *string   `firestore:"replyToId"`
	ReplyToName    *string   `firestore:"replyToName"`
	ReplyToText    *string   `firestore:"replyToText"`
}

func (d *firestoreMessage) toEntity(id string) *entity.Message {
	return &entity.Message{
		Id:             id,
		ConversationId: d.ConversationId,
		SenderId:       d.SenderId,
		Text:           d.Text,
		Timestamp:      entity.TimeToMillis(d.Timestamp),
		Status:         d.Status,
		ReplyToId:      d.ReplyToId,
		ReplyToName:    d.ReplyToName,
		ReplyToText:    d.ReplyToText,
	}
}

func isFirestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// eachDocument drains iter, calling fn for every snapshot
func eachDocument(iter *firestore.DocumentIterator, fn func(snap *firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

type firestoreConversationRepo struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

func (r *firestoreConversationRepo) Upsert(ctx context.Context, in *entity.ConversationUpsert) error {
	ref := r.coll.Doc(in.Id)
	now := entity.MillisToTime(in.Now)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if !isFirestoreNotFound(err) {
				return err
			}
			conv := in.Merge(nil)
			return tx.Set(ref, &firestoreConversation{
				Participants: conv.Participants,
				LastMessage:  conv.LastMessage,
				LastUpdated:  now,
				CreatedAt:    now,
				Metadata:     conv.Metadata,
			})
		}

		updates := []firestore.Update{{Path: "lastUpdated", Value: now}}
		if in.Participants != nil {
			updates = append(updates, firestore.Update{Path: "participants", Value: in.Participants})
		}
		if in.LastMessage != nil {
			updates = append(updates, firestore.Update{Path: "lastMessage", Value: *in.LastMessage})
		}
		for _, field := range entity.FlattenMetadata(in.Metadata) {
			path := append(firestore.FieldPath{"metadata"}, field.Path...)
			updates = append(updates, firestore.Update{FieldPath: path, Value: field.Value})
		}
		return tx.Update(ref, updates)
	})
}

func (r *firestoreConversationRepo) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	snap, err := r.coll.Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc firestoreConversation
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toEntity(snap.Ref.ID), nil
}

func (r *firestoreConversationRepo) ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	iter := r.coll.Where("participants", "array-contains", userId).
		OrderBy("lastUpdated", firestore.Desc).
		Documents(ctx)
	return r.collect(iter)
}

func (r *firestoreConversationRepo) ListAll(ctx context.Context) ([]*entity.Conversation, error) {
	convs, err := r.collect(r.coll.Documents(ctx))
	if err != nil {
		return nil, err
	}
	sortByLastUpdated(convs)
	return convs, nil
}

func (r *firestoreConversationRepo) collect(iter *firestore.DocumentIterator) ([]*entity.Conversation, error) {
	convs := make([]*entity.Conversation, 0)
	err := eachDocument(iter, func(snap *firestore.DocumentSnapshot) error {
		var doc firestoreConversation
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		convs = append(convs, doc.toEntity(snap.Ref.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *firestoreConversationRepo) UpdateTitle(ctx context.Context, id, title string, now int64) error {
	return r.update(ctx, id, []firestore.Update{
		{FieldPath: firestore.FieldPath{"metadata", constant.MetadataTitleKey}, Value: title},
		{Path: "lastUpdated", Value: entity.MillisToTime(now)},
	})
}

func (r *firestoreConversationRepo) UpdateLastMessage(ctx context.Context, id, lastMessage string, now int64) error {
	return r.update(ctx, id, []firestore.Update{
		{Path: "lastMessage", Value: lastMessage},
		{Path: "lastUpdated", Value: entity.MillisToTime(now)},
	})
}

func (r *firestoreConversationRepo) update(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := r.coll.Doc(id).Update(ctx, updates); err != nil {
		if isFirestoreNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *firestoreConversationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.Doc(id).Delete(ctx)
	return err
}

type firestoreMessageRepo struct {
	coll *firestore.CollectionRef
}

func (r *firestoreMessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	ref, _, err := r.coll.Add(ctx, &firestoreMessage{
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		Timestamp:      entity.MillisToTime(msg.Timestamp),
		Status:         msg.Status,
		ReplyToId:      msg.ReplyToId,
		ReplyToName:    msg.ReplyToName,
		ReplyToText:    msg.ReplyToText,
	})
	if err != nil {
		return err
	}
	msg.Id = ref.ID
	return nil
}

func (r *firestoreMessageRepo) Get(ctx context.Context, id string) (*entity.Message, error) {
	snap, err := r.coll.Doc(id).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc firestoreMessage
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toEntity(snap.Ref.ID), nil
}

func (r *firestoreMessageRepo) List(ctx context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error) {
	q := r.coll.Where("conversationId", "==", conversationId).
		OrderBy("timestamp", firestore.Desc)
	if before > 0 {
		q = q.StartAfter(entity.MillisToTime(before))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	msgs := make([]*entity.Message, 0)
	err := eachDocument(q.Documents(ctx), func(snap *firestore.DocumentSnapshot) error {
		var doc firestoreMessage
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		msgs = append(msgs, doc.toEntity(snap.Ref.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *firestoreMessageRepo) UpdateText(ctx context.Context, id, text string) error {
	if _, err := r.coll.Doc(id).Update(ctx, []firestore.Update{{Path: "text", Value: text}}); err != nil {
		if isFirestoreNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *firestoreMessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.Doc(id).Delete(ctx)
	return err
}
