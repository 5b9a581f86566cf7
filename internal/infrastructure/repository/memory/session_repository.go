package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// SessionRepository keeps conversation state in process memory. Entries expire
// after ttl without a Save.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &SessionRepository{cache: cache.New(ttl, cleanup)}
}

func (r *SessionRepository) Create(_ context.Context, state domain.ConversationState) error {
	if err := r.cache.Add(state.SessionID, state.Clone(), cache.DefaultExpiration); err != nil {
		return fmt.Errorf("create session %s: %w", state.SessionID, err)
	}
	return nil
}

func (r *SessionRepository) Get(_ context.Context, sessionID string) (domain.ConversationState, error) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return domain.ConversationState{}, notFound("get session", sessionID)
	}
	return x.(domain.ConversationState).Clone(), nil
}

func (r *SessionRepository) Save(_ context.Context, state domain.ConversationState) error {
	if err := r.cache.Replace(state.SessionID, state.Clone(), cache.DefaultExpiration); err != nil {
		return notFound("save session", state.SessionID)
	}
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, sessionID string) error {
	if _, found := r.cache.Get(sessionID); !found {
		return notFound("delete session", sessionID)
	}
	r.cache.Delete(sessionID)
	return nil
}

func (r *SessionRepository) Len() int {
	return r.cache.ItemCount()
}

func notFound(op, sessionID string) error {
	return domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("id=%s", sessionID))
}
