package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatline/internal/config"
	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

func strPtr(s string) *string { return &s }

// testConfig returns a config whose collection names are unique to the test
func testConfig(t *testing.T, driver string) *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = driver
	suffix := fmt.Sprintf("%d", entity.NowUnixMilli())
	cfg.Store.ConversationCollection = "test_conversations_" + suffix
	cfg.Store.MessageCollection = "test_messages_" + suffix
	return cfg
}

func testIDGenerator(t *testing.T) idgen.IDGenerator {
	gen, err := idgen.New(idgen.KindSonyflake, 1)
	require.NoError(t, err)
	return gen
}

// plainMetadata normalizes driver-specific map types through JSON
func plainMetadata(t *testing.T, m map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, err := sonic.Marshal(m)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, sonic.Unmarshal(data, &out))
	return out
}

// runRepositorySuite checks the behavior every store driver must share
func runRepositorySuite(t *testing.T, newRepos func(t *testing.T) *Repositories) {
	ctx := context.Background()

	t.Run("upsert creates with defaults", func(t *testing.T) {
		repos := newRepos(t)
		err := repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "room1", Now: 1000})
		require.NoError(t, err)

		conv, err := repos.Conversation.Get(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, "room1", conv.Id)
		assert.Empty(t, conv.Participants)
		assert.Equal(t, constant.DefaultLastMessage, conv.LastMessage)
		assert.Equal(t, int64(1000), conv.CreatedAt)
		assert.Equal(t, int64(1000), conv.LastUpdated)
		assert.Empty(t, conv.Metadata)
	})

	t.Run("upsert merges into existing", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
			Id:           "room1",
			Participants: []string{"u1", "u2"},
			LastMessage:  strPtr("hello"),
			Metadata:     map[string]interface{}{"title": "Trip", "color": "blue"},
			Now:          1000,
		}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
			Id:       "room1",
			Metadata: map[string]interface{}{"title": "Work"},
			Now:      2000,
		}))

		conv, err := repos.Conversation.Get(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, conv.Participants)
		assert.Equal(t, "hello", conv.LastMessage)
		assert.Equal(t, int64(1000), conv.CreatedAt)
		assert.Equal(t, int64(2000), conv.LastUpdated)
		assert.Equal(t, "Work", conv.Metadata["title"])
		assert.Equal(t, "blue", conv.Metadata["color"])
	})

	t.Run("get missing", func(t *testing.T) {
		repos := newRepos(t)
		_, err := repos.Conversation.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by participant newest first", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "a", Participants: []string{"u1"}, Now: 1000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "b", Participants: []string{"u1", "u2"}, Now: 3000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "c", Participants: []string{"u2"}, Now: 2000}))

		convs, err := repos.Conversation.ListByParticipant(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, "b", convs[0].Id)
		assert.Equal(t, "a", convs[1].Id)

		convs, err = repos.Conversation.ListByParticipant(ctx, "u3")
		require.NoError(t, err)
		assert.Empty(t, convs)

		all, err := repos.Conversation.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("list all newest first", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "a", Participants: []string{"u1"}, Now: 1000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "b", Participants: []string{"u2"}, Now: 3000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "c", Participants: []string{"u3"}, Now: 2000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "d", Participants: []string{"u4"}, Now: 2000}))

		all, err := repos.Conversation.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, []string{"b", "c", "d", "a"}, []string{all[0].Id, all[1].Id, all[2].Id, all[3].Id})

		require.NoError(t, repos.Conversation.UpdateLastMessage(ctx, "a", "hi", 4000))
		all, err = repos.Conversation.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", all[0].Id)
	})

	t.Run("participant change updates listing", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "a", Participants: []string{"u1"}, Now: 1000}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "a", Participants: []string{"u2"}, Now: 2000}))

		convs, err := repos.Conversation.ListByParticipant(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, convs)

		convs, err = repos.Conversation.ListByParticipant(ctx, "u2")
		require.NoError(t, err)
		assert.Len(t, convs, 1)
	})

	t.Run("nested metadata merges", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
			Id: "room1",
			Metadata: map[string]interface{}{
				"prefs": map[string]interface{}{"color": "red", "mute": "no"},
			},
			Now: 1000,
		}))
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
			Id: "room1",
			Metadata: map[string]interface{}{
				"prefs": map[string]interface{}{"color": "blue"},
				"title": "Trip",
			},
			Now: 2000,
		}))

		conv, err := repos.Conversation.Get(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, "Trip", conv.Title())
		assert.Equal(t, map[string]interface{}{
			"prefs": map[string]interface{}{"color": "blue", "mute": "no"},
			"title": "Trip",
		}, plainMetadata(t, conv.Metadata))
	})

	t.Run("update title", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{
			Id:       "room1",
			Metadata: map[string]interface{}{"color": "blue"},
			Now:      1000,
		}))
		require.NoError(t, repos.Conversation.UpdateTitle(ctx, "room1", "Trip", 2000))

		conv, err := repos.Conversation.Get(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, "Trip", conv.Title())
		assert.Equal(t, "blue", conv.Metadata["color"])
		assert.Equal(t, int64(2000), conv.LastUpdated)

		err = repos.Conversation.UpdateTitle(ctx, "nope", "Trip", 3000)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repos.Conversation.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update last message", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "room1", Now: 1000}))
		require.NoError(t, repos.Conversation.UpdateLastMessage(ctx, "room1", "hi", 2000))

		conv, err := repos.Conversation.Get(ctx, "room1")
		require.NoError(t, err)
		assert.Equal(t, "hi", conv.LastMessage)
		assert.Equal(t, int64(2000), conv.LastUpdated)

		err = repos.Conversation.UpdateLastMessage(ctx, "nope", "hi", 3000)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete conversation is idempotent", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "room1", Participants: []string{"u1"}, Now: 1000}))
		require.NoError(t, repos.Conversation.Delete(ctx, "room1"))
		require.NoError(t, repos.Conversation.Delete(ctx, "room1"))

		_, err := repos.Conversation.Get(ctx, "room1")
		assert.ErrorIs(t, err, ErrNotFound)
		convs, err := repos.Conversation.ListByParticipant(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, convs)
	})

	t.Run("create and get message", func(t *testing.T) {
		repos := newRepos(t)
		msg := &entity.Message{
			ConversationId: "room1",
			SenderId:       "u1",
			Text:           "hi",
			Timestamp:      1000,
			Status:         constant.MsgStatusSent,
			ReplyToId:      strPtr("m0"),
		}
		require.NoError(t, repos.Message.Create(ctx, msg))
		require.NotEmpty(t, msg.Id)

		got, err := repos.Message.Get(ctx, msg.Id)
		require.NoError(t, err)
		assert.Equal(t, msg.Id, got.Id)
		assert.Equal(t, "room1", got.ConversationId)
		assert.Equal(t, "u1", got.SenderId)
		assert.Equal(t, "hi", got.Text)
		assert.Equal(t, int64(1000), got.Timestamp)
		assert.Equal(t, int32(constant.MsgStatusSent), got.Status)
		require.NotNil(t, got.ReplyToId)
		assert.Equal(t, "m0", *got.ReplyToId)
		assert.Nil(t, got.ReplyToName)
		assert.Nil(t, got.ReplyToText)

		_, err = repos.Message.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list messages pages by timestamp", func(t *testing.T) {
		repos := newRepos(t)
		for i := 1; i <= 5; i++ {
			require.NoError(t, repos.Message.Create(ctx, &entity.Message{
				ConversationId: "room1",
				SenderId:       "u1",
				Text:           fmt.Sprintf("m%d", i),
				Timestamp:      int64(i * 1000),
			}))
		}
		require.NoError(t, repos.Message.Create(ctx, &entity.Message{
			ConversationId: "room2",
			SenderId:       "u1",
			Text:           "other",
			Timestamp:      6000,
		}))

		page, err := repos.Message.List(ctx, "room1", 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "m5", page[0].Text)
		assert.Equal(t, "m4", page[1].Text)

		page, err = repos.Message.List(ctx, "room1", 2, page[1].Timestamp)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "m3", page[0].Text)
		assert.Equal(t, "m2", page[1].Text)

		page, err = repos.Message.List(ctx, "room1", 2, page[1].Timestamp)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "m1", page[0].Text)

		page, err = repos.Message.List(ctx, "room1", 2, page[0].Timestamp)
		require.NoError(t, err)
		assert.Empty(t, page)

		page, err = repos.Message.List(ctx, "empty", 20, 0)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("update message text", func(t *testing.T) {
		repos := newRepos(t)
		msg := &entity.Message{ConversationId: "room1", SenderId: "u1", Text: "hi", Timestamp: 1000}
		require.NoError(t, repos.Message.Create(ctx, msg))
		require.NoError(t, repos.Message.UpdateText(ctx, msg.Id, "hello"))
		require.NoError(t, repos.Message.UpdateText(ctx, msg.Id, "hello"))

		got, err := repos.Message.Get(ctx, msg.Id)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
		assert.Equal(t, int64(1000), got.Timestamp)

		err = repos.Message.UpdateText(ctx, "nope", "x")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete message is idempotent", func(t *testing.T) {
		repos := newRepos(t)
		msg := &entity.Message{ConversationId: "room1", SenderId: "u1", Text: "hi", Timestamp: 1000}
		require.NoError(t, repos.Message.Create(ctx, msg))
		require.NoError(t, repos.Message.Delete(ctx, msg.Id))
		require.NoError(t, repos.Message.Delete(ctx, msg.Id))

		_, err := repos.Message.Get(ctx, msg.Id)
		assert.ErrorIs(t, err, ErrNotFound)
		page, err := repos.Message.List(ctx, "room1", 20, 0)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("deleting conversation keeps messages", func(t *testing.T) {
		repos := newRepos(t)
		require.NoError(t, repos.Conversation.Upsert(ctx, &entity.ConversationUpsert{Id: "room1", Now: 1000}))
		msg := &entity.Message{ConversationId: "room1", SenderId: "u1", Text: "hi", Timestamp: 2000}
		require.NoError(t, repos.Message.Create(ctx, msg))
		require.NoError(t, repos.Conversation.Delete(ctx, "room1"))

		page, err := repos.Message.List(ctx, "room1", 20, 0)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, msg.Id, page[0].Id)
	})

	t.Run("check connection", func(t *testing.T) {
		repos := newRepos(t)
		assert.NoError(t, repos.CheckConnection(ctx))
	})
}
