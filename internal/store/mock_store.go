// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu             sync.RWMutex
	clients        map[string]*Client              // keyed by client ID
	clientsByEmail map[string]string               // email -> client ID
	adminUsers     map[string]*AdminUser           // keyed by username
	processes      map[string]*Process             // keyed by process ID
	consultations  map[string]*ProcessConsultation // keyed by process number
	documents      map[string][]*Document          // keyed by client ID
	conversations  map[string]*Conversation        // keyed by conversation ID
	convByClient   map[string]string               // client ID -> conversation ID
	messages       map[string][]*ChatMessage       // keyed by conversation ID
	idempotency    map[string]struct{}             // seen idempotency keys
	nextSeq        int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		clients:        make(map[string]*Client),
		clientsByEmail: make(map[string]string),
		adminUsers:     make(map[string]*AdminUser),
		processes:      make(map[string]*Process),
		consultations:  make(map[string]*ProcessConsultation),
		documents:      make(map[string][]*Document),
		conversations:  make(map[string]*Conversation),
		convByClient:   make(map[string]string),
		messages:       make(map[string][]*ChatMessage),
		idempotency:    make(map[string]struct{}),
	}
}

// CreateClient stores a new client.
func (m *MockStore) CreateClient(ctx context.Context, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clientsByEmail[client.Email]; exists {
		return ErrDuplicateClient
	}

	c := *client
	m.clients[c.ID] = &c
	m.clientsByEmail[c.Email] = c.ID
	return nil
}

// GetClient retrieves a client by ID.
func (m *MockStore) GetClient(ctx context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// GetClientByEmail retrieves a client by email.
func (m *MockStore) GetClientByEmail(ctx context.Context, email string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.clientsByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.clients[id]
	return &result, nil
}

// ListClients returns clients ordered by name.
func (m *MockStore) ListClients(ctx context.Context, limit int) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var clients []*Client
	for _, c := range m.clients {
		result := *c
		clients = append(clients, &result)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	if len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

// CreateAdminUser stores a new admin user.
func (m *MockStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := *user
	m.adminUsers[u.Username] = &u
	return nil
}

// GetAdminUserByUsername retrieves an admin user by username.
func (m *MockStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.adminUsers[username]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// CreateProcess stores a new process.
func (m *MockStore) CreateProcess(ctx context.Context, proc *Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.processes {
		if p.Number == proc.Number {
			return ErrDuplicateProcess
		}
	}
	p := *proc
	if p.Status == "" {
		p.Status = "active"
	}
	m.processes[p.ID] = &p
	return nil
}

// GetProcessByNumber retrieves a process by number.
func (m *MockStore) GetProcessByNumber(ctx context.Context, number string) (*Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.processes {
		if p.Number == number {
			result := *p
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// ListProcessesByClient returns a client's processes, most recently updated first.
func (m *MockStore) ListProcessesByClient(ctx context.Context, clientID string) ([]*Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var procs []*Process
	for _, p := range m.processes {
		if p.ClientID == clientID {
			result := *p
			procs = append(procs, &result)
		}
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].UpdatedAt.After(procs[j].UpdatedAt) })
	return procs, nil
}

// UpdateProcessStatus changes a process status.
func (m *MockStore) UpdateProcessStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.processes[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

// UpsertProcessConsultation inserts or replaces a consultation payload.
func (m *MockStore) UpsertProcessConsultation(ctx context.Context, c *ProcessConsultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.consultations[c.ProcessNumber]; ok {
		existing.Data = c.Data
		existing.Status = c.Status
		existing.UpdatedAt = now
		return nil
	}
	stored := *c
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.consultations[stored.ProcessNumber] = &stored
	return nil
}

// GetProcessConsultation retrieves a consultation by process number.
func (m *MockStore) GetProcessConsultation(ctx context.Context, processNumber string) (*ProcessConsultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.consultations[processNumber]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// SaveDocument records document metadata.
func (m *MockStore) SaveDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := *doc
	m.documents[d.ClientID] = append(m.documents[d.ClientID], &d)
	return nil
}

// ListDocumentsByClient returns a client's documents, newest first.
func (m *MockStore) ListDocumentsByClient(ctx context.Context, clientID string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	for _, d := range m.documents[clientID] {
		result := *d
		docs = append(docs, &result)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

// CreateConversation stores a new conversation, enforcing one per client.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.convByClient[conv.ClientID]; exists {
		return ErrDuplicateConversation
	}

	c := *conv
	m.conversations[c.ID] = &c
	m.convByClient[c.ClientID] = c.ID
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// GetConversationByClient retrieves the conversation owned by a client.
func (m *MockStore) GetConversationByClient(ctx context.Context, clientID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.convByClient[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.conversations[id]
	return &result, nil
}

// ListConversations returns conversations ordered by most recent message.
func (m *MockStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var convs []*Conversation
	for _, c := range m.conversations {
		result := *c
		convs = append(convs, &result)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].LastMessageAt.After(convs[j].LastMessageAt) })
	if len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// InsertMessage appends a message and bumps the conversation's last_message_at.
func (m *MockStore) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.idempotency[msg.IdempotencyKey]; seen {
		return ErrDuplicateMessage
	}

	m.nextSeq++
	stored := *msg
	stored.Seq = m.nextSeq
	m.messages[stored.ConversationID] = append(m.messages[stored.ConversationID], &stored)
	m.idempotency[stored.IdempotencyKey] = struct{}{}

	if conv, ok := m.conversations[stored.ConversationID]; ok {
		conv.LastMessageAt = stored.CreatedAt
	}

	msg.Seq = stored.Seq
	return nil
}

// ListMessages returns a conversation's messages in (created_at, seq) order.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 500
	}

	var msgs []*ChatMessage
	for _, msg := range m.messages[conversationID] {
		result := *msg
		msgs = append(msgs, &result)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// MarkMessageRead sets the read timestamp on a message if not already set.
func (m *MockStore) MarkMessageRead(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				if msg.ReadAt == nil {
					t := at
					msg.ReadAt = &t
				}
				return nil
			}
		}
	}
	return ErrNotFound
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
