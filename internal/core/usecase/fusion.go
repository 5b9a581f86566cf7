package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const defaultRetrievalK = 3

// FusionEngine merges the core set and every adapter's candidates into one
// duplicate-free sequence. Adapter order is the declared priority order.
type FusionEngine struct {
	adapters []ports.DocumentStoreAdapter
	coreSet  *CoreSetHolder
	k        int
}

func NewFusionEngine(coreSet *CoreSetHolder, k int, adapters ...ports.DocumentStoreAdapter) *FusionEngine {
	if k <= 0 {
		k = defaultRetrievalK
	}
	return &FusionEngine{
		adapters: append([]ports.DocumentStoreAdapter(nil), adapters...),
		coreSet:  coreSet,
		k:        k,
	}
}

// Fuse queries every adapter concurrently and waits for all of them.
// A failed adapter contributes nothing; the failure is reported, not returned.
func (e *FusionEngine) Fuse(ctx context.Context, query string) (domain.FusedSet, domain.FusionReport) {
	var core domain.CoreDocumentSet
	if e.coreSet != nil {
		core = e.coreSet.Current()
	}

	results := make([]domain.CandidateSet, len(e.adapters))
	outcomes := make([]domain.AdapterOutcome, len(e.adapters))

	var g errgroup.Group
	for i, adapter := range e.adapters {
		g.Go(func() error {
			started := time.Now()
			docs, err := adapter.Search(ctx, query, e.k)
			outcomes[i] = domain.AdapterOutcome{
				Adapter:  adapter.Name(),
				Results:  len(docs),
				Err:      err,
				Duration: time.Since(started),
			}
			if err != nil {
				slog.Warn("adapter_failed", "adapter", adapter.Name(), "error", err.Error())
				outcomes[i].Results = 0
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	fused := fuseFirstOccurrence(core, results)
	report := domain.FusionReport{
		CoreDocuments: len(core),
		Outcomes:      outcomes,
		Fused:         len(fused),
	}
	if report.AllAdaptersFailed() {
		slog.Warn("all_adapters_failed", "adapters", report.FailedAdapters(), "core_documents", len(core))
	}
	return fused, report
}

func fuseFirstOccurrence(core domain.CoreDocumentSet, results []domain.CandidateSet) domain.FusedSet {
	total := len(core)
	for _, r := range results {
		total += len(r)
	}

	out := make(domain.FusedSet, 0, total)
	seen := make(map[string]struct{}, total)
	add := func(docs []domain.Document) {
		for _, doc := range docs {
			if _, ok := seen[doc.Content]; ok {
				continue
			}
			seen[doc.Content] = struct{}{}
			out = append(out, doc)
		}
	}

	add(core)
	for _, r := range results {
		add(r)
	}
	return out
}
