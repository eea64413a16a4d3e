package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/chatline/internal/entity"
	"github.com/mbeoliero/chatline/internal/repository"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*entity.Event
}

func (p *recordingPublisher) Publish(event *entity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []entity.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]entity.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *recordingPublisher) last() *entity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.NewMemoryRepositories(idgen.NewUUIDGenerator())
}

// fixedClock returns a clock ticking by one millisecond from start
func fixedClock(start int64) func() int64 {
	var mu sync.Mutex
	now := start
	return func() int64 {
		mu.Lock()
		defer mu.Unlock()
		now++
		return now
	}
}

func strPtr(s string) *string { return &s }

func createConversation(t *testing.T, s *ConversationService, id string, participants ...string) {
	t.Helper()
	_, err := s.CreateConversation(context.Background(), &CreateConversationRequest{Id: id, Participants: participants})
	require.NoError(t, err)
}
