package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

// redisMaxWatchRetries bounds optimistic-lock retries when a watched key changes
const redisMaxWatchRetries = 10

func init() {
	Register(constant.DriverRedis, openRedis)
}

func openRedis(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	gen, err := newIDGenerator(cfg)
	if err != nil {
		return nil, err
	}

	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	rdb := initRedis(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.CtxInfo(ctx, "redis connected: addr=%s, db=%d, prefix=%s", cfg.Redis.Addr(), cfg.Redis.DB, constant.GetRedisKeyPrefix())
	repos := newRedisRepositories(rdb, cfg, gen)
	repos.close = rdb.Close
	return repos, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newRedisRepositories(rdb *redis.Client, cfg *config.Config, gen idgen.IDGenerator) *Repositories {
	return &Repositories{
		Driver:       constant.DriverRedis,
		Conversation: &redisConversationRepo{rdb: rdb, coll: cfg.Store.ConversationCollection},
		Message:      &redisMessageRepo{rdb: rdb, coll: cfg.Store.MessageCollection, gen: gen},
		ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}

// redisGetter is satisfied by both *redis.Client and *redis.Tx
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// watch runs fn under WATCH on keys, retrying when another client wins the race
func watch(ctx context.Context, rdb *redis.Client, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < redisMaxWatchRetries; i++ {
		err := rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.CtxDebug(ctx, "redis watch conflict on %v, retry %d", keys, i+1)
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, redis.TxFailedErr)
}

type redisConversation struct {
	Id           string                 `json:"id"`
	Participants []string               `json:"participants"`
	LastMessage  string                 `json:"lastMessage"`
	LastUpdated  int64                  `json:"lastUpdated"`
	CreatedAt    int64                  `json:"createdAt"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type redisMessage struct {
	Id             string  `json:"id"`
	ConversationId string  `json:"conversationId"`
	SenderId       string  `json:"senderId"`
	Text           string  `json:"text"`
	Timestamp      int64   `json:"timestamp"`
	Status         int32   `json:"status"`
	ReplyToId      *string `json:"replyToId"`
	ReplyToName    *string `json:"replyToName"`
	ReplyToText    *string `json:"replyToText"`
}

type redisConversationRepo struct {
	rdb  *redis.Client
	coll string
}

func (r *redisConversationRepo) docKey(id string) string {
	return fmt.Sprintf(constant.RedisKeyConversation(), r.coll, id)
}

func (r *redisConversationRepo) allKey() string {
	return fmt.Sprintf(constant.RedisKeyConversationAll(), r.coll)
}

func (r *redisConversationRepo) userKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyUserConversation(), r.coll, userId)
}

func (r *redisConversationRepo) load(ctx context.Context, c redisGetter, id string) (*entity.Conversation, error) {
	data, err := c.Get(ctx, r.docKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRedisConversation(data)
}

func decodeRedisConversation(data []byte) (*entity.Conversation, error) {
	var doc redisConversation
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &entity.Conversation{
		Id:           doc.Id,
		Participants: doc.Participants,
		LastMessage:  doc.LastMessage,
		LastUpdated:  doc.LastUpdated,
		CreatedAt:    doc.CreatedAt,
		Metadata:     doc.Metadata,
	}, nil
}

func encodeRedisConversation(conv *entity.Conversation) ([]byte, error) {
	return sonic.Marshal(&redisConversation{
		Id:           conv.Id,
		Participants: conv.Participants,
		LastMessage:  conv.LastMessage,
		LastUpdated:  conv.LastUpdated,
		CreatedAt:    conv.CreatedAt,
		Metadata:     conv.Metadata,
	})
}

// store writes conv and keeps the participant indexes in step with prev
func (r *redisConversationRepo) store(ctx context.Context, tx *redis.Tx, prev, conv *entity.Conversation) error {
	data, err := encodeRedisConversation(conv)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(conv.Id), data, 0)
		pipe.SAdd(ctx, r.allKey(), conv.Id)
		if prev != nil {
			for _, p := range prev.Participants {
				if !conv.HasParticipant(p) {
					pipe.SRem(ctx, r.userKey(p), conv.Id)
				}
			}
		}
		for _, p := range conv.Participants {
			pipe.SAdd(ctx, r.userKey(p), conv.Id)
		}
		return nil
	})
	return err
}

func (r *redisConversationRepo) Upsert(ctx context.Context, in *entity.ConversationUpsert) error {
	return watch(ctx, r.rdb, func(tx *redis.Tx) error {
		existing, err := r.load(ctx, tx, in.Id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return r.store(ctx, tx, existing, in.Merge(existing))
	}, r.docKey(in.Id))
}

func (r *redisConversationRepo) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	return r.load(ctx, r.rdb, id)
}

func (r *redisConversationRepo) ListByParticipant(ctx context.Context, userId string) ([]*entity.Conversation, error) {
	convs, err := r.loadSet(ctx, r.userKey(userId))
	if err != nil {
		return nil, err
	}
	sortByLastUpdated(convs)
	return convs, nil
}

func (r *redisConversationRepo) ListAll(ctx context.Context) ([]*entity.Conversation, error) {
	convs, err := r.loadSet(ctx, r.allKey())
	if err != nil {
		return nil, err
	}
	sortByLastUpdated(convs)
	return convs, nil
}

// loadSet loads every conversation whose id is a member of the index set
func (r *redisConversationRepo) loadSet(ctx context.Context, setKey string) ([]*entity.Conversation, error) {
	ids, err := r.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}
	convs := make([]*entity.Conversation, 0, len(ids))
	if len(ids) == 0 {
		return convs, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.docKey(id))
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			log.CtxDebug(ctx, "stale conversation index entry: set=%s, id=%s", setKey, ids[i])
			continue
		}
		conv, err := decodeRedisConversation([]byte(s))
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (r *redisConversationRepo) UpdateTitle(ctx context.Context, id, title string, now int64) error {
	return r.mutate(ctx, id, func(conv *entity.Conversation) {
		if conv.Metadata == nil {
			conv.Metadata = make(map[string]interface{})
		}
		conv.Metadata[constant.MetadataTitleKey] = title
		conv.LastUpdated = now
	})
}

func (r *redisConversationRepo) UpdateLastMessage(ctx context.Context, id, lastMessage string, now int64) error {
	return r.mutate(ctx, id, func(conv *entity.Conversation) {
		conv.LastMessage = lastMessage
		conv.LastUpdated = now
	})
}

// mutate applies fn to an existing conversation under WATCH
func (r *redisConversationRepo) mutate(ctx context.Context, id string, fn func(conv *entity.Conversation)) error {
	return watch(ctx, r.rdb, func(tx *redis.Tx) error {
		conv, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		prev := conv.Clone()
		fn(conv)
		return r.store(ctx, tx, prev, conv)
	}, r.docKey(id))
}

func (r *redisConversationRepo) Delete(ctx context.Context, id string) error {
	return watch(ctx, r.rdb, func(tx *redis.Tx) error {
		conv, err := r.load(ctx, tx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.docKey(id))
			pipe.SRem(ctx, r.allKey(), id)
			if conv != nil {
				for _, p := range conv.Participants {
					pipe.SRem(ctx, r.userKey(p), id)
				}
			}
			return nil
		})
		return err
	}, r.docKey(id))
}

type redisMessageRepo struct {
	rdb  *redis.Client
	coll string
	gen  idgen.IDGenerator
}

func (r *redisMessageRepo) docKey(id string) string {
	return fmt.Sprintf(constant.RedisKeyMessage(), r.coll, id)
}

func (r *redisMessageRepo) timelineKey(conversationId string) string {
	return fmt.Sprintf(constant.RedisKeyConvMessages(), r.coll, conversationId)
}

func (r *redisMessageRepo) load(ctx context.Context, c redisGetter, id string) (*entity.Message, error) {
	data, err := c.Get(ctx, r.docKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRedisMessage(data)
}

func decodeRedisMessage(data []byte) (*entity.Message, error) {
	var doc redisMessage
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &entity.Message{
		Id:             doc.Id,
		ConversationId: doc.ConversationId,
		SenderId:       doc.SenderId,
		Text:           doc.Text,
		Timestamp:      doc.Timestamp,
		Status:         doc.Status,
		ReplyToId:      doc.ReplyToId,
		ReplyToName:    doc.ReplyToName,
		ReplyToText:    doc.ReplyToText,
	}, nil
}

func encodeRedisMessage(msg *entity.Message) ([]byte, error) {
	return sonic.Marshal(&redisMessage{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		Status:         msg.Status,
		ReplyToId:      msg.ReplyToId,
		ReplyToName:    msg.ReplyToName,
		ReplyToText:    msg.ReplyToText,
	})
}

func (r *redisMessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	id, err := r.gen.NextID()
	if err != nil {
		return err
	}

	stored := msg.Clone()
	stored.Id = id
	data, err := encodeRedisMessage(stored)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(id), data, 0)
		pipe.ZAdd(ctx, r.timelineKey(msg.ConversationId), redis.Z{Score: float64(msg.Timestamp), Member: id})
		return nil
	})
	if err != nil {
		return err
	}
	msg.Id = id
	return nil
}

func (r *redisMessageRepo) Get(ctx context.Context, id string) (*entity.Message, error) {
	return r.load(ctx, r.rdb, id)
}

func (r *redisMessageRepo) List(ctx context.Context, conversationId string, limit int, before int64) ([]*entity.Message, error) {
	opt := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if before > 0 {
		opt.Max = "(" + strconv.FormatInt(before, 10)
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	ids, err := r.rdb.ZRevRangeByScore(ctx, r.timelineKey(conversationId), opt).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]*entity.Message, 0, len(ids))
	if len(ids) == 0 {
		return msgs, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.docKey(id))
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		msg, err := decodeRedisMessage([]byte(s))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	sortByTimestampDesc(msgs)
	return msgs, nil
}

func (r *redisMessageRepo) UpdateText(ctx context.Context, id, text string) error {
	key := r.docKey(id)
	return watch(ctx, r.rdb, func(tx *redis.Tx) error {
		msg, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		msg.Text = text
		data, err := encodeRedisMessage(msg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

func (r *redisMessageRepo) Delete(ctx context.Context, id string) error {
	key := r.docKey(id)
	return watch(ctx, r.rdb, func(tx *redis.Tx) error {
		msg, err := r.load(ctx, tx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.timelineKey(msg.ConversationId), id)
			return nil
		})
		return err
	}, key)
}
