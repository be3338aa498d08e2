// ABOUTME: SQLite-backed Store: two tables (sessions, turns), WAL mode, idempotent migration on open.
// ABOUTME: CreateSession/CreateTurn fall back to MemoryFallback on any backing-store error.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is the durable Store implementation. It degrades to an in-memory
// fallback object on write failures rather than returning an error to the
// caller, per the fallback semantics in the data model.
type SQLStore struct {
	db       *sql.DB
	fallback *MemoryFallback
}

// New opens or creates a SQLite database at path, enables WAL mode and
// foreign keys, and runs the idempotent schema migration.
func New(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			dialogue_type TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_activity_at TEXT NOT NULL,
			metadata TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			metadata TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session_seq ON turns(session_id, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLStore{db: db, fallback: NewMemoryFallback(0, 0)}, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Health pings the database. It is advisory/observability-only; the
// fallback rule below already triggers per-call on write failure.
func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) CreateSession(ctx context.Context, userID, title string, dialogueType DialogueType, metadata map[string]any) (*Session, error) {
	if userID == "" {
		return nil, &MalformedInputError{Reason: "user_id is required"}
	}
	if dialogueType == "" {
		dialogueType = DefaultDialogueType
	}
	if !ValidDialogueType(dialogueType) {
		return nil, &MalformedInputError{Reason: "unknown dialogue_type: " + string(dialogueType)}
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:             NewID(),
		UserID:         userID,
		Title:          title,
		DialogueType:   dialogueType,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
		Status:         StatusActive,
		Metadata:       metadata,
	}

	metaJSON, err := json.Marshal(orEmptyMap(metadata))
	if err != nil {
		return nil, &MalformedInputError{Reason: "metadata not serializable: " + err.Error()}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, title, dialogue_type, status, created_at, updated_at, last_activity_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, string(sess.DialogueType), string(sess.Status),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), formatTime(sess.LastActivityAt), string(metaJSON))
	if err != nil {
		log.Printf("component=store action=create_session kind=store_unavailable message=%q", err)
		return s.fallback.CreateSession(ctx, userID, title, dialogueType, metadata)
	}

	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, dialogue_type, status, created_at, updated_at, last_activity_at, metadata
		 FROM sessions WHERE id = ?`, sessionID)

	var (
		id, userID, title, dialogueType, status string
		createdAt, updatedAt, lastActivityAt    string
		metaJSON                                string
	)
	if err := row.Scan(&id, &userID, &title, &dialogueType, &status, &createdAt, &updatedAt, &lastActivityAt, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, &NotFoundError{Kind: "session", ID: sessionID}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := &Session{
		ID:           id,
		UserID:       userID,
		Title:        title,
		DialogueType: DialogueType(dialogueType),
		Status:       SessionStatus(status),
	}
	sess.CreatedAt, _ = parseTime(createdAt)
	sess.UpdatedAt, _ = parseTime(updatedAt)
	sess.LastActivityAt, _ = parseTime(lastActivityAt)
	sess.Metadata = decodeMeta(metaJSON)
	return sess, nil
}

func (s *SQLStore) ListSessionsByUser(ctx context.Context, userID string, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, dialogue_type, status, created_at, updated_at, last_activity_at, metadata
		 FROM sessions WHERE user_id = ? ORDER BY last_activity_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		log.Printf("component=store action=list_sessions kind=store_unavailable message=%q", err)
		return []*Session{}, nil
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]*Session, 0)
	for rows.Next() {
		var (
			id, uid, title, dialogueType, status string
			createdAt, updatedAt, lastActivityAt string
			metaJSON                             string
		)
		if err := rows.Scan(&id, &uid, &title, &dialogueType, &status, &createdAt, &updatedAt, &lastActivityAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess := &Session{
			ID: id, UserID: uid, Title: title,
			DialogueType: DialogueType(dialogueType),
			Status:       SessionStatus(status),
			Metadata:     decodeMeta(metaJSON),
		}
		sess.CreatedAt, _ = parseTime(createdAt)
		sess.UpdatedAt, _ = parseTime(updatedAt)
		sess.LastActivityAt, _ = parseTime(lastActivityAt)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLStore) UpdateSessionActivity(ctx context.Context, sessionID string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(ts), formatTime(ts), sessionID)
	if err != nil {
		log.Printf("component=store action=update_activity kind=store_unavailable message=%q", err)
		return nil
	}
	return nil
}

func (s *SQLStore) CreateTurn(ctx context.Context, sessionID string, role Role, content string, metadata map[string]any) (*Turn, error) {
	if sessionID == "" {
		return nil, &MalformedInputError{Reason: "session_id is required"}
	}
	if !ValidRole(role) {
		return nil, &MalformedInputError{Reason: "unknown role: " + string(role)}
	}

	metaJSON, err := json.Marshal(orEmptyMap(metadata))
	if err != nil {
		return nil, &MalformedInputError{Reason: "metadata not serializable: " + err.Error()}
	}

	turn := &Turn{
		ID:        NewID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("component=store action=create_turn kind=store_unavailable message=%q", err)
		return s.fallback.CreateTurn(ctx, sessionID, role, content, metadata)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		log.Printf("component=store action=create_turn kind=store_unavailable message=%q", err)
		return s.fallback.CreateTurn(ctx, sessionID, role, content, metadata)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, seq, role, content, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, seq, string(turn.Role), turn.Content, formatTime(turn.CreatedAt), string(metaJSON)); err != nil {
		log.Printf("component=store action=create_turn kind=store_unavailable message=%q", err)
		return s.fallback.CreateTurn(ctx, sessionID, role, content, metadata)
	}

	if err := tx.Commit(); err != nil {
		log.Printf("component=store action=create_turn kind=store_unavailable message=%q", err)
		return s.fallback.CreateTurn(ctx, sessionID, role, content, metadata)
	}

	return turn, nil
}

func (s *SQLStore) GetTurns(ctx context.Context, sessionID string, limit int, beforeID string) ([]*Turn, error) {
	query := `SELECT id, session_id, role, content, created_at, metadata FROM turns WHERE session_id = ?`
	args := []any{sessionID}

	if beforeID != "" {
		var beforeSeq int
		if err := s.db.QueryRowContext(ctx, `SELECT seq FROM turns WHERE id = ?`, beforeID).Scan(&beforeSeq); err == nil {
			query += ` AND seq < ?`
			args = append(args, beforeSeq)
		}
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("component=store action=get_turns kind=store_unavailable message=%q", err)
		return []*Turn{}, nil
	}
	defer func() { _ = rows.Close() }()

	turns := make([]*Turn, 0)
	for rows.Next() {
		var (
			id, sid, role, content, createdAt string
			metaJSON                          string
		)
		if err := rows.Scan(&id, &sid, &role, &content, &createdAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn := &Turn{ID: id, SessionID: sid, Role: Role(role), Content: content, Metadata: decodeMeta(metaJSON)}
		turn.CreatedAt, _ = parseTime(createdAt)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *SQLStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func decodeMeta(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

var _ Store = (*SQLStore)(nil)
