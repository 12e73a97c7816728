// ABOUTME: In-memory fan-out broadcaster for newly inserted chat messages
// ABOUTME: Implements the realtime notification contract consumed by sessions

package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/atrio-legal/lexgate/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// ErrBroadcasterClosed is returned by Subscribe after Close has been called
var ErrBroadcasterClosed = errors.New("broadcaster closed")

// Broadcaster provides per-conversation pub/sub for inserted chat messages.
// Delivery is at-least-once from the subscriber's point of view and carries
// no cross-message ordering guarantee; sessions dedupe and order on receipt.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*broadcastSub // conversationID -> subID -> sub
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]*broadcastSub),
		logger:      logger.With("component", "broadcaster"),
	}
}

// broadcastSub is one live registration for a conversation's messages.
type broadcastSub struct {
	b              *Broadcaster
	conversationID string
	id             string
	ch             chan *store.ChatMessage

	mu   sync.Mutex
	err  error
	done bool
}

// Events returns the channel on which inserted messages are delivered.
// The channel is closed when the subscription ends.
func (s *broadcastSub) Events() <-chan *store.ChatMessage {
	return s.ch
}

// Err reports why the subscription ended. It is nil for a clean Close and
// meaningful only after Events has been closed.
func (s *broadcastSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription. Safe to call more than once.
func (s *broadcastSub) Close() {
	s.b.unsubscribe(s.conversationID, s.id, nil)
}

// terminate marks the subscription finished and closes its channel once.
func (s *broadcastSub) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.err = err
	close(s.ch)
}

// Subscribe registers for messages inserted into the given conversation.
// The subscription is released automatically when ctx is cancelled; callers
// must otherwise release it with Close.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (Subscription, error) {
	sub := &broadcastSub{
		b:              b,
		conversationID: conversationID,
		id:             uuid.New().String(),
		ch:             make(chan *store.ChatMessage, subscriberBufferSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBroadcasterClosed
	}
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]*broadcastSub)
	}
	b.subscribers[conversationID][sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", sub.id)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.unsubscribe(conversationID, sub.id, nil)
	}()

	return sub, nil
}

// Publish delivers a message to all subscribers of its conversation.
// Non-blocking: the message is dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(conversationID string, msg *store.ChatMessage) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy under read lock to avoid holding it during sends
	targets := make([]*broadcastSub, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
			// Delivered
		default:
			b.logger.Debug("dropped message for slow subscriber",
				"conversation_id", conversationID,
				"message_id", msg.ID)
		}
	}
}

// SubscriberCount returns the number of live subscriptions for a conversation.
func (b *Broadcaster) SubscriberCount(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[conversationID])
}

// unsubscribe removes a subscription and terminates its channel.
func (b *Broadcaster) unsubscribe(conversationID, subID string, err error) {
	b.mu.Lock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		b.mu.Unlock()
		return
	}

	sub, exists := subs[subID]
	if !exists {
		b.mu.Unlock()
		return
	}

	delete(subs, subID)
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}
	b.mu.Unlock()

	sub.terminate(err)

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and terminates all subscriptions.
// Subsequent Subscribe calls fail with ErrBroadcasterClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	var all []*broadcastSub
	for convID, subs := range b.subscribers {
		for subID, sub := range subs {
			all = append(all, sub)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.terminate(nil)
	}

	b.logger.Debug("broadcaster closed")
}
