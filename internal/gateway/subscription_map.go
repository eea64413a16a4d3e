package gateway

import "sync"

// SubscriptionMap indexes connected clients by the conversations they follow
type SubscriptionMap struct {
	mu    sync.RWMutex
	convs map[string]map[string]*Client // conversationId -> connId -> client
}

// NewSubscriptionMap creates a new SubscriptionMap
func NewSubscriptionMap() *SubscriptionMap {
	return &SubscriptionMap{
		convs: make(map[string]map[string]*Client),
	}
}

// Subscribe adds client to the subscribers of conversationId
func (m *SubscriptionMap) Subscribe(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.convs[conversationId]
	if !ok {
		clients = make(map[string]*Client, 2)
		m.convs[conversationId] = clients
	}
	clients[client.ConnId] = client
}

// Unsubscribe removes client from the subscribers of conversationId
func (m *SubscriptionMap) Unsubscribe(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(conversationId, client)
}

// RemoveClient drops every subscription of client
func (m *SubscriptionMap) RemoveClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conversationId := range client.Subscriptions() {
		m.remove(conversationId, client)
	}
}

func (m *SubscriptionMap) remove(conversationId string, client *Client) {
	clients, ok := m.convs[conversationId]
	if !ok {
		return
	}
	delete(clients, client.ConnId)
	if len(clients) == 0 {
		delete(m.convs, conversationId)
	}
}

// Get returns a snapshot of the subscribers of conversationId
func (m *SubscriptionMap) Get(conversationId string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := m.convs[conversationId]
	result := make([]*Client, 0, len(clients))
	for _, c := range clients {
		result = append(result, c)
	}
	return result
}

// ConversationCount returns the number of conversations with at least one subscriber
func (m *SubscriptionMap) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}
