package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const defaultRedundancyThreshold = 0.95

// scorerWarmer is implemented by scorers that can batch-prepare a whole set
// before pairwise comparison.
type scorerWarmer interface {
	Warm(ctx context.Context, docs []domain.Document) error
}

// FilterRedundant keeps a document only when its similarity to every earlier
// kept document is at most threshold; the threshold is used as given, so 0
// keeps only mutually dissimilar documents. Order of survivors is preserved.
// A failed comparison counts as "not redundant".
func FilterRedundant(
	ctx context.Context,
	docs domain.FusedSet,
	scorer ports.RedundancyScorer,
	threshold float64,
) domain.FusedSet {
	out := make(domain.FusedSet, 0, len(docs))
	if scorer == nil || len(docs) < 2 {
		return append(out, docs...)
	}
	if w, ok := scorer.(scorerWarmer); ok {
		if err := w.Warm(ctx, docs); err != nil {
			slog.Warn("redundancy_warm_failed", "error", err.Error())
		}
	}

	for _, doc := range docs {
		redundant := false
		for _, kept := range out {
			sim, err := scorer.Similarity(ctx, kept, doc)
			if err != nil {
				slog.Warn("redundancy_score_failed", "error", err.Error())
				continue
			}
			if sim > threshold {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, doc)
		}
	}
	return out
}
