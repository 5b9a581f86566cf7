package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

func docs(contents ...string) []domain.Document {
	out := make([]domain.Document, 0, len(contents))
	for _, c := range contents {
		out = append(out, domain.Document{Content: c})
	}
	return out
}

func contents(in []domain.Document) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		out = append(out, d.Content)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type adapterFake struct {
	name    string
	results []domain.Document
	err     error
	block   chan struct{}

	mu      sync.Mutex
	queries []string
	ks      []int
}

func (f *adapterFake) Name() string { return f.name }

func (f *adapterFake) Search(ctx context.Context, query string, k int) (domain.CandidateSet, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(domain.CandidateSet, len(f.results))
	copy(out, f.results)
	return out, nil
}

// scorerFake returns fixed similarities keyed by the unordered content pair.
type scorerFake struct {
	pairs map[[2]string]float64
	fail  map[[2]string]bool
	calls int
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (f *scorerFake) Similarity(_ context.Context, a, b domain.Document) (float64, error) {
	f.calls++
	key := pairKey(a.Content, b.Content)
	if f.fail[key] {
		return 0, errors.New("scorer unavailable")
	}
	return f.pairs[key], nil
}

type generatorFake struct {
	mu       sync.Mutex
	response string
	err      error
	block    chan struct{}
	requests []domain.GenerationRequest
}

func (f *generatorFake) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *generatorFake) last() domain.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type sessionStoreFake struct {
	mu      sync.Mutex
	states  map[string]domain.ConversationState
	saveErr error
	saves   int
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{states: make(map[string]domain.ConversationState)}
}

func (f *sessionStoreFake) Create(_ context.Context, state domain.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[state.SessionID]; ok {
		return fmt.Errorf("duplicate session %s", state.SessionID)
	}
	f.states[state.SessionID] = state.Clone()
	return nil
}

func (f *sessionStoreFake) Get(_ context.Context, id string) (domain.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[id]
	if !ok {
		return domain.ConversationState{}, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
	}
	return state.Clone(), nil
}

func (f *sessionStoreFake) Save(_ context.Context, state domain.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.states[state.SessionID] = state.Clone()
	return nil
}

func (f *sessionStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[id]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", fmt.Errorf("id=%s", id))
	}
	delete(f.states, id)
	return nil
}

type loaderFake struct {
	docs  []domain.Document
	err   error
	calls int
}

func (f *loaderFake) Load(context.Context) ([]domain.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type indexerFake struct {
	name    string
	err     error
	indexed []domain.Document
}

func (f *indexerFake) Name() string { return f.name }

func (f *indexerFake) IndexDocuments(_ context.Context, docs []domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = docs
	return nil
}

type eventsFake struct {
	published []string
	deliver   []string
}

func (f *eventsFake) PublishCorpusChanged(_ context.Context, revision string) error {
	f.published = append(f.published, revision)
	return nil
}

func (f *eventsFake) SubscribeCorpusChanged(ctx context.Context, handler func(context.Context, string) error) error {
	for _, rev := range f.deliver {
		if err := handler(ctx, rev); err != nil {
			return err
		}
	}
	return nil
}

type observerFake struct {
	mu       sync.Mutex
	statuses []string
	captures []bool
	reports  []domain.FusionReport
}

func (f *observerFake) ObserveFusion(report domain.FusionReport, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
}

func (f *observerFake) ObserveTurn(status string, _ domain.Goal, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *observerFake) ObserveProfileCapture(captured bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, captured)
}
