package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

// CorpusObserver receives corpus lifecycle measurements.
type CorpusObserver interface {
	ObserveCorpusReload(documents, coreDocuments int, err error)
	ObserveIndexing(indexer string, documents int, duration time.Duration, err error)
}

type noopCorpusObserver struct{}

func (noopCorpusObserver) ObserveCorpusReload(int, int, error)               {}
func (noopCorpusObserver) ObserveIndexing(string, int, time.Duration, error) {}

type CorpusUseCase struct {
	loader   ports.CorpusLoader
	coreSet  *CoreSetHolder
	indexers []ports.CorpusIndexer
	events   ports.CorpusEvents
	observer CorpusObserver
	now      func() time.Time
}

func NewCorpusUseCase(
	loader ports.CorpusLoader,
	coreSet *CoreSetHolder,
	indexers []ports.CorpusIndexer,
	events ports.CorpusEvents,
) *CorpusUseCase {
	return &CorpusUseCase{
		loader:   loader,
		coreSet:  coreSet,
		indexers: append([]ports.CorpusIndexer(nil), indexers...),
		events:   events,
		observer: noopCorpusObserver{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *CorpusUseCase) SetObserver(observer CorpusObserver) {
	if observer == nil {
		observer = noopCorpusObserver{}
	}
	uc.observer = observer
}

// Reload reads the corpus and republishes the core set. It returns the core set size.
func (uc *CorpusUseCase) Reload(ctx context.Context) (int, error) {
	docs, err := uc.loader.Load(ctx)
	if err != nil {
		uc.observer.ObserveCorpusReload(0, 0, err)
		return 0, fmt.Errorf("load corpus: %w", err)
	}
	core := uc.coreSet.Rebuild(docs)
	uc.observer.ObserveCorpusReload(len(docs), len(core), nil)
	slog.Info("core_set_rebuilt", "documents", len(docs), "core_documents", len(core), "cap", uc.coreSet.Limit())
	return len(core), nil
}

// IndexCorpus seeds every retrieval backend with the current corpus and
// announces the new revision. Backends are indexed one after another so a
// failure leaves the remaining ones untouched.
func (uc *CorpusUseCase) IndexCorpus(ctx context.Context) (string, error) {
	docs, err := uc.loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load corpus: %w", err)
	}
	if len(docs) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "index corpus", fmt.Errorf("corpus is empty"))
	}

	for _, indexer := range uc.indexers {
		started := time.Now()
		err := indexer.IndexDocuments(ctx, docs)
		uc.observer.ObserveIndexing(indexer.Name(), len(docs), time.Since(started), err)
		if err != nil {
			return "", fmt.Errorf("index %s: %w", indexer.Name(), err)
		}
		slog.Info("corpus_indexed", "indexer", indexer.Name(), "documents", len(docs), "duration_ms", time.Since(started).Milliseconds())
	}

	core := uc.coreSet.Rebuild(docs)
	uc.observer.ObserveCorpusReload(len(docs), len(core), nil)

	revision := uc.now().Format(time.RFC3339Nano)
	if uc.events != nil {
		if err := uc.events.PublishCorpusChanged(ctx, revision); err != nil {
			return revision, fmt.Errorf("publish corpus change: %w", err)
		}
	}
	return revision, nil
}

// WatchCorpus reloads the core set each time a new corpus revision is announced.
func (uc *CorpusUseCase) WatchCorpus(ctx context.Context) error {
	if uc.events == nil {
		return nil
	}
	return uc.events.SubscribeCorpusChanged(ctx, func(ctx context.Context, revision string) error {
		slog.Info("corpus_changed", "revision", revision)
		_, err := uc.Reload(ctx)
		return err
	})
}
