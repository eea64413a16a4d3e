package entity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatline/pkg/constant"
)

func TestNowUnixMilli_StrictlyIncreasing(t *testing.T) {
	const workers, perWorker = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for i := 0; i < perWorker; i++ {
				now := NowUnixMilli()
				assert.Greater(t, now, last)
				last = now
				mu.Lock()
				seen[now] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.GreaterOrEqual(t, NowUnixMilli(), time.Now().Add(-time.Second).UnixMilli())
}

func TestMillisConversion(t *testing.T) {
	assert.True(t, MillisToTime(0).IsZero())
	assert.Equal(t, int64(0), TimeToMillis(time.Time{}))

	ts := int64(1700000000123)
	converted := MillisToTime(ts)
	assert.Equal(t, time.UTC, converted.Location())
	assert.Equal(t, ts, TimeToMillis(converted))
}

func TestConversationUpsert_Merge(t *testing.T) {
	last := "hello"

	t.Run("new document", func(t *testing.T) {
		conv := (&ConversationUpsert{Id: "room1", Now: 100}).Merge(nil)
		assert.Equal(t, "room1", conv.Id)
		assert.Equal(t, []string{}, conv.Participants)
		assert.Equal(t, constant.DefaultLastMessage, conv.LastMessage)
		assert.Equal(t, int64(100), conv.CreatedAt)
		assert.Equal(t, int64(100), conv.LastUpdated)
		assert.NotNil(t, conv.Metadata)
	})

	t.Run("existing document", func(t *testing.T) {
		existing := &Conversation{
			Id:           "room1",
			Participants: []string{"u1"},
			LastMessage:  "old",
			CreatedAt:    100,
			LastUpdated:  150,
			Metadata:     map[string]interface{}{"title": "Trip", "color": "red"},
		}
		conv := (&ConversationUpsert{
			Id:          "room1",
			LastMessage: &last,
			Metadata:    map[string]interface{}{"color": "blue"},
			Now:         200,
		}).Merge(existing)

		assert.Equal(t, []string{"u1"}, conv.Participants)
		assert.Equal(t, "hello", conv.LastMessage)
		assert.Equal(t, int64(100), conv.CreatedAt)
		assert.Equal(t, int64(200), conv.LastUpdated)
		assert.Equal(t, "Trip", conv.Title())
		assert.Equal(t, "blue", conv.Metadata["color"])

		// existing is left untouched
		assert.Equal(t, "red", existing.Metadata["color"])
		assert.Equal(t, "old", existing.LastMessage)
	})

	t.Run("participants replaced", func(t *testing.T) {
		existing := &Conversation{Id: "room1", Participants: []string{"u1"}}
		conv := (&ConversationUpsert{Id: "room1", Participants: []string{"u2", "u3"}, Now: 1}).Merge(existing)
		assert.Equal(t, []string{"u2", "u3"}, conv.Participants)
		assert.True(t, conv.HasParticipant("u3"))
		assert.False(t, conv.HasParticipant("u1"))
	})
}

func TestConversationUpsert_MergeNestedMetadata(t *testing.T) {
	existing := &Conversation{
		Id: "room1",
		Metadata: map[string]interface{}{
			"prefs": map[string]interface{}{"color": "red", "mute": "no"},
			"tag":   "a",
		},
	}
	conv := (&ConversationUpsert{
		Id: "room1",
		Metadata: map[string]interface{}{
			"prefs": map[string]interface{}{"color": "blue"},
			"tag":   map[string]interface{}{"name": "b"},
		},
		Now: 1,
	}).Merge(existing)

	assert.Equal(t, map[string]interface{}{"color": "blue", "mute": "no"}, conv.Metadata["prefs"])
	assert.Equal(t, map[string]interface{}{"name": "b"}, conv.Metadata["tag"])
	assert.Equal(t, "red", existing.Metadata["prefs"].(map[string]interface{})["color"])

	cleared := (&ConversationUpsert{
		Id:       "room1",
		Metadata: map[string]interface{}{"prefs": map[string]interface{}{}},
		Now:      2,
	}).Merge(conv)
	assert.Equal(t, map[string]interface{}{}, cleared.Metadata["prefs"])
}

func TestFlattenMetadata(t *testing.T) {
	fields := FlattenMetadata(map[string]interface{}{
		"title": "Trip",
		"prefs": map[string]interface{}{
			"color": "blue",
			"sound": map[string]interface{}{"volume": 3},
		},
		"empty": map[string]interface{}{},
	})
	require.Len(t, fields, 4)
	assert.Equal(t, []string{"empty"}, fields[0].Path)
	assert.Equal(t, map[string]interface{}{}, fields[0].Value)
	assert.Equal(t, []string{"prefs", "color"}, fields[1].Path)
	assert.Equal(t, []string{"prefs", "sound", "volume"}, fields[2].Path)
	assert.Equal(t, 3, fields[2].Value)
	assert.Equal(t, []string{"title"}, fields[3].Path)

	assert.Empty(t, FlattenMetadata(nil))
}

func TestConversation_Clone(t *testing.T) {
	conv := &Conversation{Id: "room1", Participants: []string{"u1"}, Metadata: map[string]interface{}{"title": "Trip"}}
	clone := conv.Clone()
	clone.Participants[0] = "u2"
	clone.Metadata["title"] = "changed"

	assert.Equal(t, "u1", conv.Participants[0])
	assert.Equal(t, "Trip", conv.Title())

	nested := &Conversation{Id: "room1", Metadata: map[string]interface{}{"prefs": map[string]interface{}{"color": "red"}}}
	nestedClone := nested.Clone()
	nestedClone.Metadata["prefs"].(map[string]interface{})["color"] = "blue"
	assert.Equal(t, "red", nested.Metadata["prefs"].(map[string]interface{})["color"])
}

func TestMessage_CloneAndInfo(t *testing.T) {
	replyId := "m0"
	msg := &Message{Id: "m1", ConversationId: "room1", SenderId: "u1", Text: "hi", Timestamp: 5, Status: constant.MsgStatusSent, ReplyToId: &replyId}

	clone := msg.Clone()
	*clone.ReplyToId = "other"
	assert.Equal(t, "m0", *msg.ReplyToId)

	info := msg.ToMessageInfo()
	require.NotNil(t, info.ReplyToId)
	assert.Equal(t, "m0", *info.ReplyToId)
	assert.Nil(t, info.ReplyToName)
	assert.Equal(t, int64(5), info.Timestamp)
}
