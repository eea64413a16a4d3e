package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisRepositories(t *testing.T) {
	runRepositorySuite(t, func(t *testing.T) *Repositories {
		_, rdb := newTestRedis(t)
		return newRedisRepositories(rdb, testConfig(t, constant.DriverRedis), testIDGenerator(t))
	})
}

func TestRedisRepositories_Keys(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	cfg := testConfig(t, constant.DriverRedis)
	repos := newRedisRepositories(rdb, cfg, testIDGenerator(t))

	require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
		Id:           "room1",
		Participants: []string{"u1"},
		Now:          1000,
	}))
	msg := &entity.Message{ConversationId: "room1", SenderId: "u1", Text: "hi", Timestamp: 2000}
	require.NoError(t, repos.Message.Create(ctx, msg))

	convColl := cfg.Store.ConversationCollection
	msgColl := cfg.Store.MessageCollection
	prefix := constant.GetRedisKeyPrefix()

	assert.True(t, mr.Exists(fmt.Sprintf("%s%s:doc:room1", prefix, convColl)))
	members, err := mr.SMembers(fmt.Sprintf("%s%s:user:u1", prefix, convColl))
	require.NoError(t, err)
	assert.Equal(t, []string{"room1"}, members)

	assert.True(t, mr.Exists(fmt.Sprintf("%s%s:doc:%s", prefix, msgColl, msg.Id)))
	score, err := mr.ZScore(fmt.Sprintf("%s%s:timeline:room1", prefix, msgColl), msg.Id)
	require.NoError(t, err)
	assert.Equal(t, float64(2000), score)
}

func TestRedisRepositories_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	repos := newRedisRepositories(rdb, testConfig(t, constant.DriverRedis), testIDGenerator(t))
	mr.Close()

	assert.Error(t, repos.CheckConnection(ctx))
	_, err := repos.Conversation.Get(ctx, "room1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
