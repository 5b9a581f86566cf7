package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/segment-advisor/internal/config"
	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
	"github.com/kirillkom/segment-advisor/internal/core/usecase"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/chunking"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/corpus"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/repository/memory"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/similarity"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/segment-advisor/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/segment-advisor/internal/observability/metrics"
)

const (
	adapterDenseA  = "dense_a"
	adapterDenseB  = "dense_b"
	adapterLexical = "lexical"
)

type Options struct {
	Service string
	// Sessions opens the session store; the indexer runs without one.
	Sessions bool
}

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	Turns  *usecase.TurnUseCase
	Corpus *usecase.CorpusUseCase

	idleSessions func(ctx context.Context, before time.Time) (int64, error)
	closeFn      []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Metrics = metrics.NewHTTPServerMetrics(opts.Service)
	advisorMetrics := metrics.NewAdvisorMetrics(opts.Service, app.Metrics.Registry())
	corpusMetrics := metrics.NewCorpusMetrics(opts.Service, app.Metrics.Registry())

	overrides := resilience.Overrides{
		RetryMaxAttempts:    cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff: cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:     cfg.ResilienceRetryMaxBackoff,
		BreakerFailureRatio: cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:  cfg.ResilienceBreakerOpenTimeout,
		BreakerDisabled:     cfg.ResilienceBreakerDisabled,
	}
	newExecutor := func(backend resilience.Backend) *resilience.Executor {
		executor := resilience.NewExecutor(resilience.Profile(backend).With(overrides))
		executor.SetObserver(advisorMetrics)
		return executor
	}

	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	// Generation and embedding share the ollama server but not the retry profile.
	genClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel)
	genClient.SetResilience(newExecutor(resilience.BackendGeneration))
	generator := ollama.NewGenerator(genClient)

	embedClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel)
	embedClient.SetResilience(newExecutor(resilience.BackendRetrieval))
	embedderA := ollama.NewEmbedder(embedClient, cfg.OllamaEmbedModelA)
	embedderB := ollama.NewEmbedder(embedClient, cfg.OllamaEmbedModelB)

	qdrantExecutor := newExecutor(resilience.BackendRetrieval)
	newCollection := func(name string) *qdrant.Client {
		client := qdrant.New(cfg.QdrantURL, name)
		client.SetResilience(qdrantExecutor)
		return client
	}
	denseA := qdrant.NewDenseAdapter(adapterDenseA, newCollection(cfg.QdrantDenseCollectionA), embedderA)
	denseB := qdrant.NewDenseAdapter(adapterDenseB, newCollection(cfg.QdrantDenseCollectionB), embedderB)
	lexical := qdrant.NewLexicalAdapter(adapterLexical, newCollection(cfg.QdrantLexicalCollection))

	source, err := localfs.New(cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("init corpus source: %w", err)
	}
	loader := corpus.NewLoader(source, chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
	coreSet := usecase.NewCoreSetHolder(taxonomy.CoreCategories, cfg.CoreSetCap)

	var events ports.CorpusEvents
	if cfg.EventsEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: newExecutor(resilience.BackendEvents),
			ClientName:         "segment-advisor-" + opts.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("init corpus events: %w", err)
		}
		app.closeFn = append(app.closeFn, queue.Close)
		events = queue
	}

	app.Corpus = usecase.NewCorpusUseCase(loader, coreSet, []ports.CorpusIndexer{denseA, denseB, lexical}, events)
	app.Corpus.SetObserver(corpusMetrics)

	if opts.Sessions {
		sessions, err := app.openSessions(ctx, cfg)
		if err != nil {
			return nil, err
		}

		tracker, err := usecase.NewIntentTracker(taxonomy)
		if err != nil {
			return nil, fmt.Errorf("init intent tracker: %w", err)
		}
		scorer, err := similarity.NewEmbeddingScorer(scorerEmbedder(embedClient, cfg, embedderA, embedderB), cfg.ScorerCacheSize)
		if err != nil {
			return nil, fmt.Errorf("init redundancy scorer: %w", err)
		}

		fusion := usecase.NewFusionEngine(coreSet, cfg.RetrievalK, denseA, denseB, lexical)
		structurer := usecase.NewContextStructurer(taxonomy.ContextCategories, taxonomy.ContextFallback)
		app.Turns = usecase.NewTurnUseCase(sessions, tracker, fusion, scorer, structurer, generator, domain.TurnLimits{
			HistoryMaxMessages:  cfg.HistoryMaxMessages,
			RedundancyThreshold: cfg.RedundancyThreshold,
			TurnTimeout:         cfg.TurnTimeout,
		})
		app.Turns.SetObserver(advisorMetrics)
		app.Turns.SetGreeting(cfg.Greeting)
	}

	ok = true
	return app, nil
}

// scorerEmbedder reuses a retrieval embedder when the redundancy model matches
// one, so the scorer shares its embedding space with that adapter.
func scorerEmbedder(client *ollama.Client, cfg config.Config, embedderA, embedderB *ollama.Embedder) *ollama.Embedder {
	switch cfg.RedundancyEmbedModel {
	case "", cfg.OllamaEmbedModelB:
		return embedderB
	case cfg.OllamaEmbedModelA:
		return embedderA
	default:
		return ollama.NewEmbedder(client, cfg.RedundancyEmbedModel)
	}
}

func (a *App) openSessions(ctx context.Context, cfg config.Config) (ports.SessionStore, error) {
	switch cfg.SessionBackend {
	case "memory":
		return memory.NewSessionRepository(cfg.SessionTTL), nil
	case "postgres", "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFn = append(a.closeFn, func() { _ = db.Close() })
		repo := postgres.NewSessionRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.idleSessions = repo.DeleteIdle
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}

// PrimeCoreSet loads the corpus once so the first turns already carry the core set.
// A failure is logged; the service then answers with retrieval results only.
func (a *App) PrimeCoreSet(ctx context.Context) {
	if _, err := a.Corpus.Reload(ctx); err != nil {
		slog.Warn("core_set_prime_failed", "error", err)
	}
}

// PurgeIdleSessions deletes stored sessions older than the configured TTL every
// interval until ctx is done. Stores with built-in expiry need no purge.
func (a *App) PurgeIdleSessions(ctx context.Context, interval time.Duration) {
	if a.idleSessions == nil || a.Config.SessionTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.idleSessions(ctx, time.Now().UTC().Add(-a.Config.SessionTTL))
			if err != nil {
				slog.Warn("session_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("sessions_purged", "count", n)
			}
		}
	}
}

func (a *App) Close() {
	for i := len(a.closeFn) - 1; i >= 0; i-- {
		a.closeFn[i]()
	}
	a.closeFn = nil
}
