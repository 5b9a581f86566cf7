package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const (
	DefaultGreeting = "¿Qué mensaje quieres generar o qué deseas saber sobre tu público?"

	turnStatusOK              = "ok"
	turnStatusInvalid         = "invalid"
	turnStatusNotFound        = "not_found"
	turnStatusGenerationError = "generation_error"
	turnStatusCanceled        = "canceled"
	turnStatusTimeout         = "timeout"
	turnStatusStoreError      = "store_error"
)

// TurnObserver receives per-turn measurements. Implementations must be safe for concurrent use.
type TurnObserver interface {
	ObserveFusion(report domain.FusionReport, filtered int)
	ObserveTurn(status string, goal domain.Goal, duration time.Duration)
	ObserveProfileCapture(captured bool)
}

type noopTurnObserver struct{}

func (noopTurnObserver) ObserveFusion(domain.FusionReport, int)          {}
func (noopTurnObserver) ObserveTurn(string, domain.Goal, time.Duration) {}
func (noopTurnObserver) ObserveProfileCapture(bool)                     {}

type TurnUseCase struct {
	sessions   ports.SessionStore
	tracker    *IntentTracker
	fusion     *FusionEngine
	scorer     ports.RedundancyScorer
	structurer *ContextStructurer
	generator  ports.GenerationCapability
	observer   TurnObserver
	limits     domain.TurnLimits
	greeting   string
	locks      *sessionLocks
	now        func() time.Time
}

func NewTurnUseCase(
	sessions ports.SessionStore,
	tracker *IntentTracker,
	fusion *FusionEngine,
	scorer ports.RedundancyScorer,
	structurer *ContextStructurer,
	generator ports.GenerationCapability,
	limits domain.TurnLimits,
) *TurnUseCase {
	if limits.HistoryMaxMessages <= 0 {
		limits.HistoryMaxMessages = 6
	}
	if limits.RedundancyThreshold < 0 || limits.RedundancyThreshold > 1 {
		limits.RedundancyThreshold = defaultRedundancyThreshold
	}
	if limits.TurnTimeout <= 0 {
		limits.TurnTimeout = 120 * time.Second
	}

	return &TurnUseCase{
		sessions:   sessions,
		tracker:    tracker,
		fusion:     fusion,
		scorer:     scorer,
		structurer: structurer,
		generator:  generator,
		observer:   noopTurnObserver{},
		limits:     limits,
		greeting:   DefaultGreeting,
		locks:      newSessionLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *TurnUseCase) SetObserver(observer TurnObserver) {
	if observer == nil {
		observer = noopTurnObserver{}
	}
	uc.observer = observer
}

func (uc *TurnUseCase) SetGreeting(greeting string) {
	if strings.TrimSpace(greeting) != "" {
		uc.greeting = greeting
	}
}

func (uc *TurnUseCase) CreateSession(ctx context.Context) (*domain.ConversationState, error) {
	now := uc.now()
	state := domain.NewConversationState(uuid.NewString(), now)
	if uc.greeting != "" {
		state = state.AppendMessage(domain.Message{
			Role:      domain.RoleAssistant,
			Content:   uc.greeting,
			CreatedAt: now,
		}, uc.limits.HistoryMaxMessages)
	}
	if err := uc.sessions.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &state, nil
}

func (uc *TurnUseCase) GetSession(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get session", fmt.Errorf("session_id is required"))
	}
	state, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &state, nil
}

// EndSession waits for an in-flight turn of the session before deleting it.
func (uc *TurnUseCase) EndSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "end session", fmt.Errorf("session_id is required"))
	}
	release, err := uc.locks.acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	defer release()

	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// ProcessTurn runs one conversational turn. The stored state changes only
// when the whole turn succeeds.
func (uc *TurnUseCase) ProcessTurn(ctx context.Context, sessionID, text string) (*domain.TurnResult, error) {
	started := time.Now()
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		uc.observer.ObserveTurn(turnStatusInvalid, domain.GoalNone, time.Since(started))
		return nil, domain.WrapError(domain.ErrInvalidInput, "process turn", fmt.Errorf("session_id is required"))
	}
	if strings.TrimSpace(text) == "" {
		uc.observer.ObserveTurn(turnStatusInvalid, domain.GoalNone, time.Since(started))
		return nil, domain.WrapError(domain.ErrInvalidInput, "process turn", fmt.Errorf("text is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.limits.TurnTimeout)
	defer cancel()

	release, err := uc.locks.acquire(ctx, sessionID)
	if err != nil {
		uc.observer.ObserveTurn(contextStatus(err), domain.GoalNone, time.Since(started))
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	stored, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		status := turnStatusStoreError
		if domain.IsKind(err, domain.ErrSessionNotFound) {
			status = turnStatusNotFound
		}
		uc.observer.ObserveTurn(status, domain.GoalNone, time.Since(started))
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := uc.now()
	working := uc.tracker.Update(stored, text)
	working.History = append(working.History, domain.Message{Role: domain.RoleUser, Content: text, CreatedAt: now})
	history := renderHistory(boundedHistory(working.History, uc.limits.HistoryMaxMessages))

	fused, report := uc.fusion.Fuse(ctx, text)
	filtered := FilterRedundant(ctx, fused, uc.scorer, uc.limits.RedundancyThreshold)
	ordered := ReorderForContext(filtered)
	contextText := uc.structurer.Structure(ordered)
	uc.observer.ObserveFusion(report, len(filtered))

	answer, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Context:  contextText,
		Question: text,
		Subject:  working.Subject,
		Profile:  working.BehavioralProfile,
		Goal:     working.Goal,
		History:  history,
	})
	// An expired or cancelled turn is reported as such, never as a generation failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		uc.observer.ObserveTurn(contextStatus(ctxErr), working.Goal, time.Since(started))
		return nil, fmt.Errorf("process turn: %w", ctxErr)
	}
	if err != nil {
		uc.observer.ObserveTurn(turnStatusGenerationError, working.Goal, time.Since(started))
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}

	working = working.AppendMessage(domain.Message{
		Role:      domain.RoleAssistant,
		Content:   answer,
		CreatedAt: uc.now(),
	}, uc.limits.HistoryMaxMessages)
	working, captured := CaptureProfile(working, answer)
	uc.observer.ObserveProfileCapture(captured)
	working.UpdatedAt = uc.now()

	if err := uc.sessions.Save(ctx, working); err != nil {
		uc.observer.ObserveTurn(turnStatusStoreError, working.Goal, time.Since(started))
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("turn_completed",
		"session_id", sessionID,
		"goal", string(working.Goal),
		"fused", report.Fused,
		"filtered", len(filtered),
		"failed_adapters", report.FailedAdapters(),
		"profile_captured", captured,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	uc.observer.ObserveTurn(turnStatusOK, working.Goal, time.Since(started))

	return &domain.TurnResult{
		SessionID:         sessionID,
		Answer:            answer,
		Goal:              working.Goal,
		Subject:           working.Subject,
		BehavioralProfile: working.BehavioralProfile,
		Sources:           []domain.Document(ordered),
		Degraded:          report.AllAdaptersFailed(),
	}, nil
}

func contextStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return turnStatusTimeout
	}
	return turnStatusCanceled
}

func boundedHistory(history []domain.Message, max int) []domain.Message {
	if max > 0 && len(history) > max {
		return history[len(history)-max:]
	}
	return history
}

func renderHistory(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	return strings.Join(lines, "\n")
}
