package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-backed conversation store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
	-- Conversations
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Turns. seq is the ordering key: timestamps can collide within a
	-- batch, AUTOINCREMENT cannot.
	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT,
		tool_call_id TEXT,
		tool_name TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendTurns commits a batch of turns in one transaction.
func (s *SQLiteStore) AppendTurns(ctx context.Context, conversationID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, conversationID, now, now); err != nil {
		return fmt.Errorf("%w: ensure conversation: %v", ErrWriteFailed, err)
	}

	for _, turn := range turns {
		id := turn.ID
		if id == "" {
			u, _ := uuid.NewV7()
			id = u.String()
		}
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (id, conversation_id, role, content, tool_calls, tool_call_id, tool_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, conversationID, turn.Role, turn.Content,
			nullable(turn.ToolCalls), nullable(turn.ToolCallID), nullable(turn.ToolName), createdAt,
		); err != nil {
			return fmt.Errorf("%w: insert turn: %v", ErrWriteFailed, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now, conversationID); err != nil {
		return fmt.Errorf("%w: touch conversation: %v", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWriteFailed, err)
	}
	return nil
}

// LoadRecent returns the trailing window of up to limit turns in
// chronological order.
func (s *SQLiteStore) LoadRecent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM (
			SELECT seq, id, role, content, tool_calls, tool_call_id, tool_name, created_at
			FROM turns
			WHERE conversation_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrReadFailed, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var toolCalls, toolCallID, toolName sql.NullString
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &toolCalls, &toolCallID, &toolName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrReadFailed, err)
		}
		t.ToolCalls = toolCalls.String
		t.ToolCallID = toolCallID.String
		t.ToolName = toolName.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrReadFailed, err)
	}

	return turns, nil
}

// Stats returns store statistics for diagnostics.
func (s *SQLiteStore) Stats() map[string]any {
	var convCount, turnCount int

	_ = s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&turnCount)

	return map[string]any{
		"conversations": convCount,
		"turns":         turnCount,
		"storage":       "sqlite",
	}
}

// nullable maps an empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
