// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides client/process/document/conversation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is used for entity timestamps.
const timeFormat = time.RFC3339

// msgTimeFormat is a fixed-width UTC timestamp for chat messages so that
// lexicographic order in the database equals chronological order. RFC3339Nano
// trims trailing zeros, which breaks string comparison across precisions.
const msgTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			phone TEXT,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_clients_email ON clients(email);

		CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS processes (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL REFERENCES clients(id),
			number TEXT NOT NULL UNIQUE,
			court TEXT,
			subject TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			CHECK (status IN ('active', 'suspended', 'archived'))
		);

		CREATE INDEX IF NOT EXISTS idx_processes_client ON processes(client_id);

		CREATE TABLE IF NOT EXISTS process_consultations (
			process_number TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL REFERENCES clients(id),
			process_id TEXT,
			file_name TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			content_type TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			uploaded_by TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (uploaded_by IN ('client', 'admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_documents_client ON documents(client_id);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			last_message_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_role TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			body TEXT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			read_at TEXT,

			CHECK (sender_role IN ('client', 'admin'))
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation
			ON chat_messages(conversation_id, created_at, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint
// violation. Only UNIQUE failures map to the duplicate sentinels; other
// constraint classes must surface as plain errors so callers that treat a
// duplicate as success never swallow them.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateClient creates a new client account.
// Returns ErrDuplicateClient if a client with the same email already exists.
func (s *SQLiteStore) CreateClient(ctx context.Context, client *Client) error {
	query := `
		INSERT INTO clients (id, name, email, phone, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.PasswordHash,
		client.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateClient
		}
		return fmt.Errorf("inserting client: %w", err)
	}

	s.logger.Debug("created client", "id", client.ID, "email", client.Email)
	return nil
}

// GetClient retrieves a client by ID.
// Returns ErrNotFound if the client doesn't exist.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*Client, error) {
	query := `
		SELECT id, name, email, phone, password_hash, created_at
		FROM clients
		WHERE id = ?
	`
	return s.scanClient(s.db.QueryRowContext(ctx, query, id))
}

// GetClientByEmail retrieves a client by email.
// Returns ErrNotFound if no client has the given email.
func (s *SQLiteStore) GetClientByEmail(ctx context.Context, email string) (*Client, error) {
	query := `
		SELECT id, name, email, phone, password_hash, created_at
		FROM clients
		WHERE email = ?
	`
	return s.scanClient(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanClient(row *sql.Row) (*Client, error) {
	var client Client
	var phone sql.NullString
	var createdAtStr string

	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&phone,
		&client.PasswordHash,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}

	client.Phone = phone.String
	client.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &client, nil
}

// ListClients retrieves clients ordered by name.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListClients(ctx context.Context, limit int) ([]*Client, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, name, email, phone, password_hash, created_at
		FROM clients
		ORDER BY name
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		var client Client
		var phone sql.NullString
		var createdAtStr string

		if err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Email,
			&phone,
			&client.PasswordHash,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}

		client.Phone = phone.String
		client.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		clients = append(clients, &client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}

	return clients, nil
}

// CreateAdminUser creates a firm-side staff account
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	query := `
		INSERT INTO admin_users (id, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("admin user %q already exists", user.Username)
		}
		return fmt.Errorf("inserting admin user: %w", err)
	}

	s.logger.Debug("created admin user", "id", user.ID, "username", user.Username)
	return nil
}

// GetAdminUserByUsername retrieves an admin user by username.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	query := `
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE username = ?
	`

	var user AdminUser
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin user: %w", err)
	}

	user.CreatedAt, err = time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateProcess creates a new legal process record.
// Returns ErrDuplicateProcess if the process number is already registered.
func (s *SQLiteStore) CreateProcess(ctx context.Context, proc *Process) error {
	query := `
		INSERT INTO processes (id, client_id, number, court, subject, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := proc.Status
	if status == "" {
		status = "active"
	}

	_, err := s.db.ExecContext(ctx, query,
		proc.ID,
		proc.ClientID,
		proc.Number,
		proc.Court,
		proc.Subject,
		status,
		proc.CreatedAt.UTC().Format(timeFormat),
		proc.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateProcess
		}
		return fmt.Errorf("inserting process: %w", err)
	}

	s.logger.Debug("created process", "id", proc.ID, "number", proc.Number)
	return nil
}

// GetProcessByNumber retrieves a process by its number.
// Returns ErrNotFound if no process has the given number.
func (s *SQLiteStore) GetProcessByNumber(ctx context.Context, number string) (*Process, error) {
	query := `
		SELECT id, client_id, number, court, subject, status, created_at, updated_at
		FROM processes
		WHERE number = ?
	`

	var proc Process
	var court, subject sql.NullString
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, number).Scan(
		&proc.ID,
		&proc.ClientID,
		&proc.Number,
		&court,
		&subject,
		&proc.Status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying process: %w", err)
	}

	proc.Court = court.String
	proc.Subject = subject.String
	if proc.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if proc.UpdatedAt, err = time.Parse(timeFormat, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &proc, nil
}

// ListProcessesByClient retrieves all processes belonging to a client,
// most recently updated first.
func (s *SQLiteStore) ListProcessesByClient(ctx context.Context, clientID string) ([]*Process, error) {
	query := `
		SELECT id, client_id, number, court, subject, status, created_at, updated_at
		FROM processes
		WHERE client_id = ?
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("querying processes: %w", err)
	}
	defer rows.Close()

	var procs []*Process
	for rows.Next() {
		var proc Process
		var court, subject sql.NullString
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(
			&proc.ID,
			&proc.ClientID,
			&proc.Number,
			&court,
			&subject,
			&proc.Status,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning process row: %w", err)
		}

		proc.Court = court.String
		proc.Subject = subject.String
		if proc.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if proc.UpdatedAt, err = time.Parse(timeFormat, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		procs = append(procs, &proc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating process rows: %w", err)
	}

	return procs, nil
}

// UpdateProcessStatus changes the status of a process.
// Returns ErrNotFound if the process doesn't exist.
func (s *SQLiteStore) UpdateProcessStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE processes
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("updating process status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated process status", "id", id, "status", status)
	return nil
}

// UpsertProcessConsultation inserts a consultation payload or replaces the
// payload of an existing one, keyed by process number.
func (s *SQLiteStore) UpsertProcessConsultation(ctx context.Context, c *ProcessConsultation) error {
	query := `
		INSERT INTO process_consultations (process_number, data, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(process_number) DO UPDATE SET
			data = excluded.data,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx, query,
		c.ProcessNumber,
		c.Data,
		c.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting process consultation: %w", err)
	}

	s.logger.Debug("upserted process consultation", "process_number", c.ProcessNumber)
	return nil
}

// GetProcessConsultation retrieves a consultation payload by process number.
// Returns ErrNotFound if none has been received yet.
func (s *SQLiteStore) GetProcessConsultation(ctx context.Context, processNumber string) (*ProcessConsultation, error) {
	query := `
		SELECT process_number, data, status, created_at, updated_at
		FROM process_consultations
		WHERE process_number = ?
	`

	var c ProcessConsultation
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, processNumber).Scan(
		&c.ProcessNumber,
		&c.Data,
		&c.Status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying process consultation: %w", err)
	}

	if c.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(timeFormat, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &c, nil
}

// SaveDocument records metadata for an uploaded document
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (id, client_id, process_id, file_name, storage_path, content_type, size_bytes, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var processID any
	if doc.ProcessID != "" {
		processID = doc.ProcessID
	}

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.ClientID,
		processID,
		doc.FileName,
		doc.StoragePath,
		doc.ContentType,
		doc.SizeBytes,
		string(doc.UploadedBy),
		doc.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("saved document", "id", doc.ID, "client_id", doc.ClientID, "file", doc.FileName)
	return nil
}

// ListDocumentsByClient retrieves document metadata for a client, newest first
func (s *SQLiteStore) ListDocumentsByClient(ctx context.Context, clientID string) ([]*Document, error) {
	query := `
		SELECT id, client_id, process_id, file_name, storage_path, content_type, size_bytes, uploaded_by, created_at
		FROM documents
		WHERE client_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var doc Document
		var processID, contentType sql.NullString
		var uploadedBy, createdAtStr string

		if err := rows.Scan(
			&doc.ID,
			&doc.ClientID,
			&processID,
			&doc.FileName,
			&doc.StoragePath,
			&contentType,
			&doc.SizeBytes,
			&uploadedBy,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		doc.ProcessID = processID.String
		doc.ContentType = contentType.String
		doc.UploadedBy = SenderRole(uploadedBy)
		if doc.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}

	return docs, nil
}

// CreateConversation creates the conversation for a client.
// Returns ErrDuplicateConversation if one already exists for the client;
// the UNIQUE constraint on client_id resolves find-or-create races.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, client_id, created_at, last_message_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ClientID,
		conv.CreatedAt.UTC().Format(timeFormat),
		conv.LastMessageAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "client_id", conv.ClientID)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, client_id, created_at, last_message_at
		FROM conversations
		WHERE id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByClient retrieves the conversation owned by a client.
// Returns ErrNotFound if the client has no conversation yet.
func (s *SQLiteStore) GetConversationByClient(ctx context.Context, clientID string) (*Conversation, error) {
	query := `
		SELECT id, client_id, created_at, last_message_at
		FROM conversations
		WHERE client_id = ?
	`
	return s.scanConversation(s.db.QueryRowContext(ctx, query, clientID))
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var createdAtStr, lastMessageAtStr string

	err := row.Scan(
		&conv.ID,
		&conv.ClientID,
		&createdAtStr,
		&lastMessageAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if conv.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.LastMessageAt, err = time.Parse(timeFormat, lastMessageAtStr); err != nil {
		return nil, fmt.Errorf("parsing last_message_at: %w", err)
	}

	return &conv, nil
}

// ListConversations retrieves conversations ordered by most recent message.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, client_id, created_at, last_message_at
		FROM conversations
		ORDER BY last_message_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		var conv Conversation
		var createdAtStr, lastMessageAtStr string

		if err := rows.Scan(
			&conv.ID,
			&conv.ClientID,
			&createdAtStr,
			&lastMessageAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}

		if conv.CreatedAt, err = time.Parse(timeFormat, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if conv.LastMessageAt, err = time.Parse(timeFormat, lastMessageAtStr); err != nil {
			return nil, fmt.Errorf("parsing last_message_at: %w", err)
		}

		convs = append(convs, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// InsertMessage appends a message to its conversation and advances the
// conversation's last_message_at in the same transaction. The database
// assigns msg.Seq. Returns ErrDuplicateMessage when the idempotency key has
// already been used, so retried sends cannot produce a second row.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chat_messages (id, conversation_id, sender_role, sender_id, body, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := msg.CreatedAt.UTC().Format(msgTimeFormat)
	result, err := tx.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.SenderRole),
		msg.SenderID,
		msg.Body,
		msg.IdempotencyKey,
		createdAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting message seq: %w", err)
	}

	touch := `UPDATE conversations SET last_message_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, touch, msg.CreatedAt.UTC().Format(timeFormat), msg.ConversationID); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	msg.Seq = seq
	s.logger.Debug("inserted message",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_role", msg.SenderRole)
	return nil
}

// ListMessages retrieves messages for a conversation in ascending
// (created_at, seq) order. The seq tiebreak keeps the order total even when
// creation timestamps collide. If limit is 0 or negative, 500 is used.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT seq, id, conversation_id, sender_role, sender_id, body, idempotency_key, created_at, read_at
		FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY created_at, seq
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var role, createdAtStr string
		var readAtStr sql.NullString

		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.ConversationID,
			&role,
			&msg.SenderID,
			&msg.Body,
			&msg.IdempotencyKey,
			&createdAtStr,
			&readAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.SenderRole = SenderRole(role)
		if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if readAtStr.Valid {
			readAt, err := time.Parse(time.RFC3339Nano, readAtStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing read_at: %w", err)
			}
			msg.ReadAt = &readAt
		}

		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return msgs, nil
}

// MarkMessageRead sets the read timestamp on a message if not already set.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE chat_messages
		SET read_at = ?
		WHERE id = ? AND read_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, at.UTC().Format(msgTimeFormat), id)
	if err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the message doesn't exist or it was already read
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chat_messages WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking message existence: %w", err)
		}
	}

	return nil
}
