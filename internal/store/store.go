// ABOUTME: Store interface and data types for lexgate persistence
// ABOUTME: Defines Client, Process, Document, Conversation, ChatMessage and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a conversation already exists for a client.
// The conversations table carries a UNIQUE constraint on client_id, so the
// find-or-create race resolves here instead of producing a second thread.
var ErrDuplicateConversation = errors.New("conversation already exists for client")

// ErrDuplicateMessage is returned when a message with the same idempotency key
// has already been inserted. Callers retrying a send can treat this as success.
var ErrDuplicateMessage = errors.New("message already inserted")

// ErrDuplicateClient is returned when a client with the same email already exists
var ErrDuplicateClient = errors.New("client already exists")

// ErrDuplicateProcess is returned when a process with the same number already exists
var ErrDuplicateProcess = errors.New("process already exists")

// SenderRole identifies which party of a conversation authored a message
type SenderRole string

const (
	RoleClient SenderRole = "client"
	RoleAdmin  SenderRole = "admin"
)

// Valid reports whether the role is one of the two known conversation parties
func (r SenderRole) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Client represents a client of the firm
type Client struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

// AdminUser represents a firm-side staff account
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Process represents a legal process tracked for a client
type Process struct {
	ID        string
	ClientID  string
	Number    string
	Court     string
	Subject   string
	Status    string // active, suspended, archived
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProcessConsultation holds the raw payload pushed by an external
// consultation provider, keyed by process number.
type ProcessConsultation struct {
	ProcessNumber string
	Data          string // raw JSON payload as delivered
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Document records metadata for an uploaded file. The bytes themselves live
// in external blob storage; only the storage path is tracked here.
type Document struct {
	ID          string
	ClientID    string
	ProcessID   string // optional
	FileName    string
	StoragePath string
	ContentType string
	SizeBytes   int64
	UploadedBy  SenderRole
	CreatedAt   time.Time
}

// Conversation is the single chat thread linking one client to the firm
type Conversation struct {
	ID            string
	ClientID      string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// ChatMessage is one timestamped, sender-attributed text entry in a conversation.
// Seq is assigned by the database on insert and provides the stable tiebreak
// for messages whose creation timestamps collide.
type ChatMessage struct {
	Seq            int64
	ID             string
	ConversationID string
	SenderRole     SenderRole
	SenderID       string
	Body           string
	IdempotencyKey string
	CreatedAt      time.Time
	ReadAt         *time.Time
}

// Store defines the interface for lexgate persistence
type Store interface {
	// Clients
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	GetClientByEmail(ctx context.Context, email string) (*Client, error)
	ListClients(ctx context.Context, limit int) ([]*Client, error)

	// Admin users
	CreateAdminUser(ctx context.Context, user *AdminUser) error
	GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error)

	// Processes
	CreateProcess(ctx context.Context, proc *Process) error
	GetProcessByNumber(ctx context.Context, number string) (*Process, error)
	ListProcessesByClient(ctx context.Context, clientID string) ([]*Process, error)
	UpdateProcessStatus(ctx context.Context, id, status string) error

	// Process consultations (webhook ingest)
	UpsertProcessConsultation(ctx context.Context, c *ProcessConsultation) error
	GetProcessConsultation(ctx context.Context, processNumber string) (*ProcessConsultation, error)

	// Documents (metadata only)
	SaveDocument(ctx context.Context, doc *Document) error
	ListDocumentsByClient(ctx context.Context, clientID string) ([]*Document, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByClient(ctx context.Context, clientID string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]*Conversation, error)

	// Chat messages
	InsertMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*ChatMessage, error)
	MarkMessageRead(ctx context.Context, id string, at time.Time) error

	// Close releases any resources held by the store
	Close() error
}
