// Package conversation persists per-conversation chat turns and per-user
// working memory, both with a sliding retention window. History is an
// optimization for continuity, not a durability guarantee: callers go
// through the BestEffort wrapper, which logs storage failures and degrades
// to empty results instead of failing the user's turn.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Turn roles. The log only ever contains user and assistant turns; system
// prompts and tool traffic are rebuilt per request and never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMemoryNotFound is returned when a user has no working-memory slot.
var ErrMemoryNotFound = errors.New("working memory not found")

const schema = `
CREATE TABLE IF NOT EXISTS turns (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conv ON turns(tenant_id, conversation_id, seq);
CREATE INDEX IF NOT EXISTS idx_turns_expiry ON turns(expires_at);

CREATE TABLE IF NOT EXISTS working_memory (
    user_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    content TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_expiry ON working_memory(expires_at);
`

// Turn is one message in a conversation. Turns are append-only and never
// mutated after creation.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation turns and working memory in SQLite.
type Store struct {
	db        *sql.DB
	retention time.Duration
}

// NewStore opens the conversation database and initializes the schema.
// retention is the sliding expiration window applied on every write.
func NewStore(dbPath string, retention time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening conversation database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating conversation schema: %w", err)
	}
	return &Store{db: db, retention: retention}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendTurn appends a turn to the conversation and extends the expiration
// window of the whole conversation from now.
func (s *Store) AppendTurn(ctx context.Context, tenantID, conversationID string, turn Turn) error {
	now := time.Now().UTC()
	expires := now.Add(s.retention)
	if turn.ID == "" {
		turn.ID = "msg_" + uuid.New().String()[:12]
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, tenant_id, conversation_id, role, content, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, tenantID, conversationID, turn.Role, turn.Content, turn.CreatedAt, expires)
	if err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}

	// Sliding window: a write refreshes retention for the whole conversation.
	_, err = s.db.ExecContext(ctx,
		`UPDATE turns SET expires_at = ? WHERE tenant_id = ? AND conversation_id = ?`,
		expires, tenantID, conversationID)
	if err != nil {
		return fmt.Errorf("extending retention: %w", err)
	}
	return nil
}

// History returns up to limit most recent unexpired turns of a conversation,
// ordered oldest first for replay to the model.
func (s *Store) History(ctx context.Context, tenantID, conversationID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM turns
		 WHERE tenant_id = ? AND conversation_id = ? AND expires_at > ?
		 ORDER BY seq DESC LIMIT ?`,
		tenantID, conversationID, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var newest []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		newest = append(newest, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest-first; replay order is oldest-first.
	out := make([]Turn, len(newest))
	for i := range newest {
		out[len(newest)-1-i] = newest[i]
	}
	return out, nil
}

// WorkingMemory returns the user's cross-conversation note, or
// ErrMemoryNotFound when absent or expired.
func (s *Store) WorkingMemory(ctx context.Context, userID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM working_memory WHERE user_id = ? AND expires_at > ?`,
		userID, time.Now().UTC()).Scan(&content)
	if err == sql.ErrNoRows {
		return "", ErrMemoryNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading working memory: %w", err)
	}
	return content, nil
}

// SaveWorkingMemory creates or overwrites the user's working-memory slot and
// refreshes its retention window.
func (s *Store) SaveWorkingMemory(ctx context.Context, tenantID, userID, content string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO working_memory (user_id, tenant_id, content, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET content = excluded.content,
		     updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		userID, tenantID, content, now, now.Add(s.retention))
	if err != nil {
		return fmt.Errorf("saving working memory: %w", err)
	}
	return nil
}

// PurgeExpired deletes turns and memory slots past their retention window.
// Returns the number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var total int64

	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purging turns: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.ExecContext(ctx, `DELETE FROM working_memory WHERE expires_at <= ?`, now)
	if err != nil {
		return total, fmt.Errorf("purging working memory: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}
