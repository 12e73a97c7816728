// ABOUTME: Session owns one open conversation view: ordered history, live subscription, send path
// ABOUTME: The realtime channel is the single source of truth for what is displayed

package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/atrio-legal/lexgate/internal/dedupe"
	"github.com/atrio-legal/lexgate/internal/store"
)

// State is the subscription state of a session
type State int32

const (
	// StateUnsubscribed is the initial state and the state after Close
	StateUnsubscribed State = iota
	// StateSubscribing means a subscription request is in flight
	StateSubscribing
	// StateActive means notifications are being delivered
	StateActive
	// StateErrored means the channel failed and a retry is scheduled
	StateErrored
	// StateUnavailable is terminal: consecutive retries were exhausted
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// dedupeTTL and dedupeSize bound the seen-message-id cache. The window only
// needs to outlive transport-level duplicate delivery, but a generous TTL
// costs little and also guards against late replays after a resubscribe.
const (
	dedupeTTL  = time.Hour
	dedupeSize = 4096
)

// Session is one open view of a conversation. It exclusively owns its
// in-memory message list; messages are appended only when their insert
// notification arrives through the subscription, never optimistically.
type Session struct {
	manager        *Manager
	conversationID string
	clientID       string

	mu       sync.RWMutex
	messages []*store.ChatMessage
	closed   bool

	seen    *dedupe.Cache
	state   atomic.Int32
	updates chan *store.ChatMessage
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newSession(m *Manager, conversationID, clientID string, history []*store.ChatMessage) *Session {
	s := &Session{
		manager:        m,
		conversationID: conversationID,
		clientID:       clientID,
		messages:       append([]*store.ChatMessage(nil), history...),
		seen:           dedupe.New(dedupeTTL, dedupeSize),
		updates:        make(chan *store.ChatMessage, subscriberBufferSize),
	}
	for _, msg := range history {
		s.seen.Record(msg.ID)
	}
	return s
}

// ConversationID returns the id of the conversation this session displays
func (s *Session) ConversationID() string {
	return s.conversationID
}

// ClientID returns the client party of the conversation
func (s *Session) ClientID() string {
	return s.clientID
}

// State returns the current subscription state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Messages returns a snapshot of the displayed message list in display order
func (s *Session) Messages() []*store.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*store.ChatMessage(nil), s.messages...)
}

// Updates delivers each newly displayed message. The channel is buffered and
// lossy for slow consumers (Messages always holds the full list); it is
// closed when the session closes.
func (s *Session) Updates() <-chan *store.ChatMessage {
	return s.updates
}

// Send inserts a new message into the conversation. The text must be
// non-empty after trimming and the sender identity must be valid for the
// role. The message is NOT appended locally; it appears in the displayed
// list when its insert notification round-trips through the subscription.
// On failure the returned *SendError carries the draft for restoration.
func (s *Session) Send(ctx context.Context, role store.SenderRole, senderID, text string) error {
	return s.SendKeyed(ctx, role, senderID, text, "")
}

// SendKeyed is Send with a caller-supplied idempotency key, making blind
// retries of the same logical send safe. An empty key generates a fresh one.
func (s *Session) SendKeyed(ctx context.Context, role store.SenderRole, senderID, text, key string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	_, err := s.manager.insertAndPublish(ctx, s.conversationID, s.clientID, role, senderID, text, key)
	if errors.Is(err, store.ErrDuplicateMessage) {
		// Already inserted under this key; the original notification
		// carries the message, so the retry succeeded.
		return nil
	}
	return err
}

// Close tears the session down: the subscription handle is released before
// Close returns, the updates channel is closed, and the state becomes
// Unsubscribed (or stays Unavailable if retries were already exhausted).
// Close is unconditional and idempotent; it is safe to call mid-open.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait() // run has released the subscription once this returns
	s.seen.Close()
	close(s.updates)
}

// append adds a notified message to the displayed list unless its id has
// been seen before (history or a duplicate delivery), in which case the
// notification is dropped silently.
func (s *Session) append(msg *store.ChatMessage) {
	if s.seen.Observe(msg.ID) {
		s.manager.logger.Debug("dropped duplicate notification",
			"conversation_id", s.conversationID,
			"message_id", msg.ID)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	select {
	case s.updates <- msg:
	default:
		s.manager.logger.Debug("updates channel full, notification not forwarded",
			"conversation_id", s.conversationID,
			"message_id", msg.ID)
	}
}

// run maintains the subscription for the life of the session. Channel errors
// trigger resubscription after capped exponential backoff; after
// ReconnectAttempts consecutive failures the session parks in
// StateUnavailable. The first successful subscribe (or terminal failure) is
// reported once on ready.
func (s *Session) run(ctx context.Context, ready chan<- error) {
	defer s.wg.Done()

	opts := s.manager.opts
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.ReconnectInitial
	bo.MaxInterval = opts.ReconnectMax
	bo.MaxElapsedTime = 0 // attempts are counted, not timed
	bo.Reset()

	attempts := 0
	signalled := false
	signal := func(err error) {
		if !signalled {
			ready <- err
			signalled = true
		}
	}

	for {
		if ctx.Err() != nil {
			s.setState(StateUnsubscribed)
			signal(ctx.Err())
			return
		}

		s.setState(StateSubscribing)
		sub, err := s.manager.notifier.Subscribe(ctx, s.conversationID)
		if err == nil {
			s.setState(StateActive)
			signal(nil)
			bo.Reset()
			attempts = 0

			for msg := range sub.Events() {
				s.append(msg)
			}
			// Always release the handle before any new subscribe attempt
			sub.Close()

			if ctx.Err() != nil {
				s.setState(StateUnsubscribed)
				return
			}
			err = sub.Err()
		}

		s.setState(StateErrored)
		attempts++
		s.manager.logger.Warn("subscription channel error",
			"conversation_id", s.conversationID,
			"attempt", attempts,
			"error", err)

		if attempts >= opts.ReconnectAttempts {
			s.manager.logger.Error("giving up on subscription",
				"conversation_id", s.conversationID,
				"attempts", attempts)
			s.setState(StateUnavailable)
			signal(err)
			return
		}

		if !sleepCtx(ctx, bo.NextBackOff()) {
			s.setState(StateUnsubscribed)
			signal(ctx.Err())
			return
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled; returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
