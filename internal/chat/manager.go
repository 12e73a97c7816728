// ABOUTME: Manager is the central layer for conversation lifecycle and message sending
// ABOUTME: Find-or-create resolves races via the store's unique constraint, never by guessing

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atrio-legal/lexgate/internal/store"
)

// ConversationStore defines what the manager needs from storage
type ConversationStore interface {
	GetConversationByClient(ctx context.Context, clientID string) (*store.Conversation, error)
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.ChatMessage, error)
	InsertMessage(ctx context.Context, msg *store.ChatMessage) error
}

// Subscription is one live registration with the realtime notification
// service. Events is closed when the subscription ends; Err then reports
// whether the end was a clean release (nil) or a channel error.
type Subscription interface {
	Events() <-chan *store.ChatMessage
	Err() error
	Close()
}

// Notifier is the subscribe side of the realtime notification service.
// Implementations must release the subscription when ctx is cancelled.
type Notifier interface {
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// Publisher is the insert-notification side of the realtime service
type Publisher interface {
	Publish(conversationID string, msg *store.ChatMessage)
}

// Options tune session behavior. Zero values fall back to defaults.
type Options struct {
	// OpenTimeout bounds the whole Open path: find/create, history load,
	// and the first subscription acknowledgment.
	OpenTimeout time.Duration

	// HistoryLimit caps how many messages Open loads.
	HistoryLimit int

	// ReconnectInitial is the first backoff delay after a channel error.
	ReconnectInitial time.Duration

	// ReconnectMax caps the exponential backoff delay.
	ReconnectMax time.Duration

	// ReconnectAttempts is the number of consecutive failed subscribe
	// attempts before the session parks in StateUnavailable. Zero or
	// negative means the default; retries are never unbounded.
	ReconnectAttempts int
}

func (o Options) withDefaults() Options {
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 10 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 500
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = 2 * time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 10
	}
	return o
}

// Manager produces ready-to-use conversation sessions and owns the
// fire-and-forget send path used by the HTTP layer.
type Manager struct {
	store     ConversationStore
	notifier  Notifier
	publisher Publisher
	opts      Options
	logger    *slog.Logger
}

// NewManager creates a conversation manager. Pass nil logger for default.
func NewManager(st ConversationStore, notifier Notifier, publisher Publisher, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts.withDefaults(),
		logger:    logger.With("component", "chat"),
	}
}

// Open resolves (or lazily creates) the conversation for clientID, loads its
// ordered history, and establishes a live subscription. It returns only once
// the subscription is active or the open timeout elapses. Failures wrap
// ErrConversationUnavailable and leave nothing behind: a partially opened
// session is closed before the error is returned.
func (m *Manager) Open(ctx context.Context, clientID string) (*Session, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrConversationUnavailable)
	}

	openCtx, cancel := context.WithTimeout(ctx, m.opts.OpenTimeout)
	defer cancel()

	conv, err := m.ensureConversation(openCtx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversationUnavailable, err)
	}

	history, err := m.store.ListMessages(openCtx, conv.ID, m.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %v", ErrConversationUnavailable, err)
	}

	s := newSession(m, conv.ID, clientID, history)

	ready := make(chan error, 1)
	runCtx, runCancel := context.WithCancel(context.Background())
	s.cancel = runCancel
	s.wg.Add(1)
	go s.run(runCtx, ready)

	select {
	case err := <-ready:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: subscribing: %v", ErrConversationUnavailable, err)
		}
	case <-openCtx.Done():
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrConversationUnavailable, openCtx.Err())
	}

	m.logger.Debug("conversation opened",
		"conversation_id", conv.ID,
		"client_id", clientID,
		"history", len(history))
	return s, nil
}

// Post is the sessionless send path: resolve the client's conversation,
// insert the message, and publish the insert notification. Used by HTTP
// handlers that don't hold a live session. An empty key generates a fresh
// idempotency key; passing a caller-supplied key makes retries safe.
func (m *Manager) Post(ctx context.Context, clientID string, role store.SenderRole, senderID, text, key string) (*store.ChatMessage, error) {
	conv, err := m.ensureConversation(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversationUnavailable, err)
	}
	return m.insertAndPublish(ctx, conv.ID, clientID, role, senderID, text, key)
}

// ensureConversation resolves an existing conversation or creates a new one.
// A lost create race is resolved by re-reading the winner's row.
func (m *Manager) ensureConversation(ctx context.Context, clientID string) (*store.Conversation, error) {
	conv, err := m.store.GetConversationByClient(ctx, clientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	conv = &store.Conversation{
		ID:            uuid.New().String(),
		ClientID:      clientID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) {
			// Another open created the conversation between our lookup and
			// insert. The unique constraint guarantees a single winner.
			existing, lookupErr := m.store.GetConversationByClient(ctx, clientID)
			if lookupErr == nil {
				m.logger.Debug("found existing conversation after race",
					"conversation_id", existing.ID,
					"client_id", clientID)
				return existing, nil
			}
			m.logger.Error("retry lookup failed after duplicate error",
				"client_id", clientID,
				"lookup_error", lookupErr)
		}
		return nil, err
	}

	m.logger.Debug("conversation created", "conversation_id", conv.ID, "client_id", clientID)
	return conv, nil
}

// insertAndPublish validates the send, persists the message, then notifies.
// Persist first, notify after: the realtime channel only ever carries rows
// that exist in the store.
func (m *Manager) insertAndPublish(ctx context.Context, conversationID, clientID string, role store.SenderRole, senderID, text, key string) (*store.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !role.Valid() || senderID == "" {
		return nil, ErrInvalidSender
	}
	if role == store.RoleClient && senderID != clientID {
		return nil, ErrInvalidSender
	}
	if key == "" {
		key = uuid.New().String()
	}

	msg := &store.ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderRole:     role,
		SenderID:       senderID,
		Body:           text,
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}

	if err := m.store.InsertMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrDuplicateMessage) {
			// The insert already landed under this idempotency key; the
			// original notification carries it, so this retry is done.
			m.logger.Debug("duplicate send suppressed",
				"conversation_id", conversationID,
				"idempotency_key", key)
			return nil, err
		}
		m.logger.Warn("message insert failed",
			"conversation_id", conversationID,
			"error", err)
		return nil, &SendError{Draft: text, Err: err}
	}

	if m.publisher != nil {
		m.publisher.Publish(conversationID, msg)
	}

	m.logger.Debug("message sent",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"sender_role", role)
	return msg, nil
}
