package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mbeoliero/kit/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

func init() {
	Register(constant.DriverMongo, openMongo)
}

func openMongo(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	gen, err := newIDGenerator(cfg)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, newMongoClientOptions(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	log.CtxInfo(ctx, "mongo connected: database=%s", cfg.Mongo.Database)
	repos := newMongoRepositories(ctx, client.Database(cfg.Mongo.Database), cfg, gen)
	repos.close = func() error { return client.Disconnect(context.Background()) }
	return repos, nil
}

// newMongoClientOptions decodes embedded documents as bson.M so metadata
// round-trips as plain maps
func newMongoClientOptions(uri string) *options.ClientOptions {
	return options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
}

func newMongoRepositories(ctx context.Context, db *mongo.Database, cfg *config.Config, gen idgen.IDGenerator) *Repositories {
	convs := db.Collection(cfg.Store.ConversationCollection)
	msgs := db.Collection(cfg.Store.MessageCollection)

	if _, err := convs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastUpdated", Value: -1}},
	}); err != nil {
		log.CtxWarn(ctx, "failed to create conversation index: %v", err)
	}
	if _, err := msgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		log.CtxWarn(ctx, "failed to create message index: %v", err)
	}

	return &Repositories{
		Driver:       constant.DriverMongo,
		Conversation: &mongoConversationRepo{coll: convs},
		Message:      &mongoMessageRepo{coll: msgs, gen: gen},
		ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
	}
}

type mongoConversation struct {
	Id           string                 `bson:"_id"`
	Participants []string               `bson:"participants"`
	LastMessage  string                 `bson:"lastMessage"`
	LastUpdated  time.Time              `bson:"lastUpdated"`
	CreatedAt    time.Time              `bson:"createdAt"`
	Metadata     map[string]interface{} `bson:"metadata"`
}

func (d *mongoConversation) toEntity() *entity.Conversation {
	return &entity.Conversation{
		Id:           d.Id,
		Participants: d.Participants,
		LastMessage:  d.LastMessage,
		LastUpdated:  entity.TimeToMillis(d.LastUpdated),
		CreatedAt:    entity.TimeToMillis(d.CreatedAt),
		Metadata:     d.Metadata,
	}
}

type mongoMessage struct {
	Id             string    `bson:"_id"`
	ConversationId string    `bson:"conversationId"`
	SenderId       string    `bson:"senderId"`
	Text           string    `bson:"text"`
	Timestamp      time.Time `bson:"timestamp"`
	Status         int32     `bson:"status"`
	ReplyToId      *string   `bson:"replyToId"`
	ReplyToName    *string   `bson:"replyToName"`
	ReplyToText    *string   `bson:"replyToText"`
}

func (d *mongoMessage) toEntity() *entity.Message {
	return &entity.Message{
		Id:             d.Id,
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

type mongoConversationRepo struct {
	coll *mongo.Collection
}

func (r *mongoConversationRepo) Upsert(ctx context.Context, in *entity.ConversationUpsert) error {
	now := entity.MillisToTime(in.Now)

	set := bson.M{"lastUpdated": now}
	setOnInsert := bson.M{"createdAt": now}
	if in.Participants != nil {
		set["participants"] = in.Participants
	} else {
		setOnInsert["participants"] = []string{}
	}
	if in.LastMessage != nil {
		set["lastMessage"] = *in.LastMessage
	} else {
		setOnInsert["lastMessage"] = constant.DefaultLastMessage
	}
	if len(in.Metadata) > 0 {
		for _, field := range entity.FlattenMetadata(in.Metadata) {
			set["metadata."+strings.Join(field.Path, ".")] = field.Value
		}
	} else {
		setOnInsert["metadata"] = bson.M{}
	}

	_, err := r.coll.UpdateByID(ctx, in.Id,
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.Update().SetUpsert(true))
	return err
}

func (r *mongoConversationRepo) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	var doc mongoConversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *mongoConversationRepo) ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastUpdated", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"participants": userId}, opts)
}

func (r *mongoConversationRepo) ListAll(ctx context.Context) ([]*entity.Conversation, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "lastUpdated", Value: -1}, {Key: "_id", Value: 1}}))
}

func (r *mongoConversationRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.Conversation, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoConversation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	convs := make([]*entity.Conversation, 0, len(docs))
	for i := range docs {
		convs = append(convs, docs[i].toEntity())
	}
	return convs, nil
}

func (r *mongoConversationRepo) UpdateTitle(ctx context.Context, id, title string, now int64) error {
	return r.set(ctx, id, bson.M{
		"metadata." + constant.MetadataTitleKey: title,
		"lastUpdated":                           entity.MillisToTime(now),
	})
}

func (r *mongoConversationRepo) UpdateLastMessage(ctx context.Context, id, lastMessage string, now int64) error {
	return r.set(ctx, id, bson.M{
		"lastMessage": lastMessage,
		"lastUpdated": entity.MillisToTime(now),
	})
}

func (r *mongoConversationRepo) set(ctx context.Context, id string, fields bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoConversationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type mongoMessageRepo struct {
	coll *mongo.Collection
	gen  idgen.IDGenerator
}

func (r *mongoMessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	id, err := r.gen.NextID()
	if err != nil {
		return err
	}

	_, err = r.coll.InsertOne(ctx, &mongoMessage{
		Id:             id,
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
	msg.Id = id
	return nil
}

func (r *mongoMessageRepo) Get(ctx context.Context, id string) (*entity.Message, error) {
	var doc mongoMessage
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *mongoMessageRepo) List(ctx context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error) {
	filter := bson.M{"conversationId": conversationId}
	if before > 0 {
		filter["timestamp"] = bson.M{"$lt": entity.MillisToTime(before)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	msgs := make([]*entity.Message, 0, len(docs))
	for i := range docs {
		msgs = append(msgs, docs[i].toEntity())
	}
	return msgs, nil
}

func (r *mongoMessageRepo) UpdateText(ctx context.Context, id, text string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"text": text}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
