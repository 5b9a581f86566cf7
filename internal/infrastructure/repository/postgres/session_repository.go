package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// SessionRepository persists ConversationState rows; history is stored as JSONB.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
	session_id TEXT PRIMARY KEY,
	subject TEXT NOT NULL DEFAULT '',
	behavioral_profile TEXT NOT NULL DEFAULT '',
	goal TEXT NOT NULL,
	history JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated_at ON conversation_sessions(updated_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, state domain.ConversationState) error {
	historyJSON, err := marshalHistory(state.History)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversation_sessions (
	session_id, subject, behavioral_profile, goal, history, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		state.SessionID, state.Subject, state.BehavioralProfile, string(state.Goal), historyJSON,
		state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (domain.ConversationState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT session_id, subject, behavioral_profile, goal, history, created_at, updated_at
FROM conversation_sessions
WHERE session_id = $1
`, sessionID)

	var state domain.ConversationState
	var goal string
	var historyRaw []byte
	err := row.Scan(
		&state.SessionID, &state.Subject, &state.BehavioralProfile, &goal, &historyRaw,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ConversationState{}, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", sessionID))
		}
		return domain.ConversationState{}, fmt.Errorf("select session: %w", err)
	}

	state.Goal = domain.ParseGoal(goal)
	state.History = []domain.Message{}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &state.History); err != nil {
			return domain.ConversationState{}, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	return state, nil
}

// Save overwrites the stored state. A session removed in the meantime is reported as not found.
func (r *SessionRepository) Save(ctx context.Context, state domain.ConversationState) error {
	historyJSON, err := marshalHistory(state.History)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE conversation_sessions
SET subject = $2, behavioral_profile = $3, goal = $4, history = $5, updated_at = $6
WHERE session_id = $1
`, state.SessionID, state.Subject, state.BehavioralProfile, string(state.Goal), historyJSON, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return ensureAffected(res, "save session", state.SessionID)
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return ensureAffected(res, "delete session", sessionID)
}

// DeleteIdle removes sessions not updated since before.
func (r *SessionRepository) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func marshalHistory(history []domain.Message) ([]byte, error) {
	if history == nil {
		history = []domain.Message{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return raw, nil
}

func ensureAffected(res sql.Result, operation, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrSessionNotFound, operation, fmt.Errorf("id=%s", sessionID))
	}
	return nil
}
