package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewSessionRepository(db), mock, func() { _ = db.Close() }
}

func TestGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT session_id, subject, behavioral_profile").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetDecodesHistoryAndGoal(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"session_id", "subject", "behavioral_profile", "goal", "history", "created_at", "updated_at"}).
		AddRow("s-1", "Soy socia", "Perfil C", "compare_profiles",
			[]byte(`[{"role":"user","content":"hola","created_at":"2026-05-01T12:00:00Z"}]`), now, now)
	mock.ExpectQuery("SELECT session_id, subject, behavioral_profile").WithArgs("s-1").WillReturnRows(rows)

	state, err := repo.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if state.Goal != domain.GoalCompareProfiles || state.Subject != "Soy socia" || state.BehavioralProfile != "Perfil C" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(state.History) != 1 || state.History[0].Role != domain.RoleUser || state.History[0].Content != "hola" {
		t.Fatalf("unexpected history: %+v", state.History)
	}
}

func TestGetUnknownGoalFallsBackToNone(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"session_id", "subject", "behavioral_profile", "goal", "history", "created_at", "updated_at"}).
		AddRow("s-1", "", "", "legacy_goal", []byte(`[]`), now, now)
	mock.ExpectQuery("SELECT session_id").WithArgs("s-1").WillReturnRows(rows)

	state, err := repo.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if state.Goal != domain.GoalNone || state.History == nil {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestCreateInsertsSerializedHistory(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	state := domain.NewConversationState("s-1", now)

	mock.ExpectExec("INSERT INTO conversation_sessions").
		WithArgs("s-1", "", "", "none", []byte(`[]`), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	state := domain.NewConversationState("gone", time.Now().UTC())
	mock.ExpectExec("UPDATE conversation_sessions").
		WithArgs("gone", "", "", "none", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), state)
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM conversation_sessions").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteIdleReturnsCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	before := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM conversation_sessions WHERE updated_at").
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteIdle(context.Background(), before)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 deleted, got %d / %v", n, err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101801)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRollsBackOnDDLError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
