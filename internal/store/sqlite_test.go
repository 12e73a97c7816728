// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers conversation uniqueness, message ordering, idempotency, and entity CRUD

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestClient(t *testing.T, s *SQLiteStore, email string) *Client {
	t.Helper()
	client := &Client{
		ID:           uuid.New().String(),
		Name:         "Test Client",
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateClient(context.Background(), client))
	return client
}

func createTestConversation(t *testing.T, s *SQLiteStore, clientID string) *Conversation {
	t.Helper()
	now := time.Now()
	conv := &Conversation{
		ID:            uuid.New().String(),
		ClientID:      clientID,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	return conv
}

func TestSQLiteStore_CreateClient_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestClient(t, s, "dup@example.com")

	err := s.CreateClient(ctx, &Client{
		ID:           uuid.New().String(),
		Name:         "Other",
		Email:        "dup@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	})
	assert.ErrorIs(t, err, ErrDuplicateClient)
}

func TestSQLiteStore_GetClientByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "maria@example.com")

	found, err := s.GetClientByEmail(ctx, "maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, client.ID, found.ID)

	_, err = s.GetClientByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateConversation_UniquePerClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	createTestConversation(t, s, client.ID)

	err := s.CreateConversation(ctx, &Conversation{
		ID:            uuid.New().String(),
		ClientID:      client.ID,
		CreatedAt:     time.Now(),
		LastMessageAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrDuplicateConversation)
}

func TestSQLiteStore_GetConversationByClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")

	_, err := s.GetConversationByClient(ctx, client.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	conv := createTestConversation(t, s, client.ID)

	found, err := s.GetConversationByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)
}

func TestSQLiteStore_InsertMessage_AssignsSeqAndTouchesConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	conv := createTestConversation(t, s, client.ID)

	sentAt := time.Now().Add(time.Hour)
	msg := &ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderRole:     RoleClient,
		SenderID:       client.ID,
		Body:           "Hello",
		IdempotencyKey: uuid.New().String(),
		CreatedAt:      sentAt,
	}
	require.NoError(t, s.InsertMessage(ctx, msg))
	assert.Greater(t, msg.Seq, int64(0))

	updated, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, sentAt, updated.LastMessageAt, 2*time.Second)
}

func TestSQLiteStore_InsertMessage_IdempotencyKeyRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	conv := createTestConversation(t, s, client.ID)

	key := uuid.New().String()
	first := &ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderRole:     RoleClient,
		SenderID:       client.ID,
		Body:           "Hello",
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.InsertMessage(ctx, first))

	retry := &ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderRole:     RoleClient,
		SenderID:       client.ID,
		Body:           "Hello",
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}
	assert.ErrorIs(t, s.InsertMessage(ctx, retry), ErrDuplicateMessage)

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestIsConstraintViolation_OnlyUnique(t *testing.T) {
	// Non-UNIQUE constraint classes must not map to the duplicate sentinels:
	// a send path treats ErrDuplicateMessage as success, so misclassifying a
	// CHECK or foreign-key failure would silently drop the message.
	assert.True(t, isConstraintViolation(fmt.Errorf("constraint failed: UNIQUE constraint failed: chat_messages.idempotency_key (2067)")))
	assert.False(t, isConstraintViolation(fmt.Errorf("constraint failed: CHECK constraint failed: chat_messages (275)")))
	assert.False(t, isConstraintViolation(fmt.Errorf("constraint failed: FOREIGN KEY constraint failed (787)")))
	assert.False(t, isConstraintViolation(fmt.Errorf("constraint failed: NOT NULL constraint failed: chat_messages.body (1299)")))
	assert.False(t, isConstraintViolation(nil))
}

func TestSQLiteStore_ListMessages_OrderedWithStableTiebreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	conv := createTestConversation(t, s, client.ID)

	// All messages share the same creation timestamp; insertion order must
	// still be preserved via the seq tiebreak.
	at := time.Now()
	for i := 0; i < 5; i++ {
		msg := &ChatMessage{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: conv.ID,
			SenderRole:     RoleClient,
			SenderID:       client.ID,
			Body:           fmt.Sprintf("message %d", i),
			IdempotencyKey: uuid.New().String(),
			CreatedAt:      at,
		}
		require.NoError(t, s.InsertMessage(ctx, msg))
	}

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.ID)
	}
}

func TestSQLiteStore_ListMessages_AscendingByCreationTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	conv := createTestConversation(t, s, client.ID)

	base := time.Now()
	// Insert out of chronological order
	for _, offset := range []time.Duration{3 * time.Second, time.Second, 2 * time.Second} {
		msg := &ChatMessage{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderRole:     RoleAdmin,
			SenderID:       "admin-1",
			Body:           offset.String(),
			IdempotencyKey: uuid.New().String(),
			CreatedAt:      base.Add(offset),
		}
		require.NoError(t, s.InsertMessage(ctx, msg))
	}

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt),
			"messages out of order at index %d", i)
	}
}

func TestSQLiteStore_MarkMessageRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")
	conv := createTestConversation(t, s, client.ID)

	msg := &ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderRole:     RoleClient,
		SenderID:       client.ID,
		Body:           "read me",
		IdempotencyKey: uuid.New().String(),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.InsertMessage(ctx, msg))

	readAt := time.Now()
	require.NoError(t, s.MarkMessageRead(ctx, msg.ID, readAt))

	msgs, err := s.ListMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ReadAt)
	assert.WithinDuration(t, readAt, *msgs[0].ReadAt, time.Second)

	// Second mark is a no-op, not an error
	require.NoError(t, s.MarkMessageRead(ctx, msg.ID, time.Now()))

	assert.ErrorIs(t, s.MarkMessageRead(ctx, "missing", time.Now()), ErrNotFound)
}

func TestSQLiteStore_ListConversations_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var convIDs []string
	for i := 0; i < 3; i++ {
		client := createTestClient(t, s, fmt.Sprintf("client-%d@example.com", i))
		conv := createTestConversation(t, s, client.ID)
		convIDs = append(convIDs, conv.ID)

		msg := &ChatMessage{
			ID:             uuid.New().String(),
			ConversationID: conv.ID,
			SenderRole:     RoleClient,
			SenderID:       client.ID,
			Body:           "hi",
			IdempotencyKey: uuid.New().String(),
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.InsertMessage(ctx, msg))
	}

	convs, err := s.ListConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, convIDs[2], convs[0].ID)
	assert.Equal(t, convIDs[0], convs[2].ID)
}

func TestSQLiteStore_ProcessLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")

	proc := &Process{
		ID:        uuid.New().String(),
		ClientID:  client.ID,
		Number:    "0001234-56.2026.8.26.0100",
		Court:     "TJSP",
		Subject:   "Labor dispute",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.CreateProcess(ctx, proc))

	// Duplicate number rejected
	dup := *proc
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, s.CreateProcess(ctx, &dup), ErrDuplicateProcess)

	found, err := s.GetProcessByNumber(ctx, proc.Number)
	require.NoError(t, err)
	assert.Equal(t, "active", found.Status)

	require.NoError(t, s.UpdateProcessStatus(ctx, proc.ID, "archived"))
	found, err = s.GetProcessByNumber(ctx, proc.Number)
	require.NoError(t, err)
	assert.Equal(t, "archived", found.Status)

	procs, err := s.ListProcessesByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Len(t, procs, 1)
}

func TestSQLiteStore_ProcessConsultation_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &ProcessConsultation{
		ProcessNumber: "0001234-56.2026.8.26.0100",
		Data:          `{"status":"pending"}`,
		Status:        "completed",
	}
	require.NoError(t, s.UpsertProcessConsultation(ctx, c))

	c.Data = `{"status":"done","extra":true}`
	require.NoError(t, s.UpsertProcessConsultation(ctx, c))

	found, err := s.GetProcessConsultation(ctx, c.ProcessNumber)
	require.NoError(t, err)
	assert.Contains(t, found.Data, "extra")

	_, err = s.GetProcessConsultation(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Documents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	client := createTestClient(t, s, "client@example.com")

	for i := 0; i < 2; i++ {
		doc := &Document{
			ID:          uuid.New().String(),
			ClientID:    client.ID,
			FileName:    fmt.Sprintf("contract-%d.pdf", i),
			StoragePath: fmt.Sprintf("%s/contract-%d.pdf", client.ID, i),
			ContentType: "application/pdf",
			SizeBytes:   1024,
			UploadedBy:  RoleClient,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveDocument(ctx, doc))
	}

	docs, err := s.ListDocumentsByClient(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "contract-1.pdf", docs[0].FileName)
}
