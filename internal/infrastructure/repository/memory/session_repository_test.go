package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

func TestSessionLifecycle(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	ctx := context.Background()
	state := domain.NewConversationState("s-1", time.Now().UTC())

	if err := repo.Create(ctx, state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, state); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	state.Subject = "Soy voluntaria"
	state.Goal = domain.GoalGenerateMessage
	if err := repo.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Subject != "Soy voluntaria" || got.Goal != domain.GoalGenerateMessage {
		t.Fatalf("unexpected state: %+v", got)
	}

	if err := repo.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "s-1"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if repo.Len() != 0 {
		t.Fatalf("expected empty store, got %d", repo.Len())
	}
}

func TestSaveAndDeleteUnknownSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.NewConversationState("ghost", time.Now())); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on save, got %v", err)
	}
	if err := repo.Delete(ctx, "ghost"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on delete, got %v", err)
	}
}

func TestStoredStateIsIsolatedFromCaller(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	ctx := context.Background()
	state := domain.NewConversationState("s-1", time.Now())
	state.History = append(state.History, domain.Message{Role: domain.RoleAssistant, Content: "hola"})
	if err := repo.Create(ctx, state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	state.History[0].Content = "mutated"
	got, _ := repo.Get(ctx, "s-1")
	if got.History[0].Content != "hola" {
		t.Fatalf("stored history changed through caller slice: %+v", got.History)
	}

	got.History[0].Content = "mutated again"
	again, _ := repo.Get(ctx, "s-1")
	if again.History[0].Content != "hola" {
		t.Fatalf("stored history changed through returned slice: %+v", again.History)
	}
}

func TestSessionsExpireAfterTTL(t *testing.T) {
	repo := NewSessionRepository(20 * time.Millisecond)
	ctx := context.Background()
	if err := repo.Create(ctx, domain.NewConversationState("s-1", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := repo.Get(ctx, "s-1"); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
