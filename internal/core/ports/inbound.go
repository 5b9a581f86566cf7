package ports

import (
	"context"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// TurnProcessor is the inbound contract for one conversational turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, text string) (*domain.TurnResult, error)
}

// SessionManager is the inbound contract for session lifecycle.
type SessionManager interface {
	CreateSession(ctx context.Context) (*domain.ConversationState, error)
	GetSession(ctx context.Context, sessionID string) (*domain.ConversationState, error)
	EndSession(ctx context.Context, sessionID string) error
}

// CorpusReloader rebuilds query-independent retrieval state after the corpus changes.
type CorpusReloader interface {
	Reload(ctx context.Context) (int, error)
}
