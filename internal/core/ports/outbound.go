package ports

import (
	"context"
	"io"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// DocumentStoreAdapter is one retrieval strategy over the knowledge base.
// Search must be deterministic for a fixed corpus, query and k.
type DocumentStoreAdapter interface {
	Name() string
	Search(ctx context.Context, query string, k int) (domain.CandidateSet, error)
}

// CorpusIndexer seeds a retrieval backend with the full corpus, replacing previous content.
type CorpusIndexer interface {
	Name() string
	IndexDocuments(ctx context.Context, docs []domain.Document) error
}

// RedundancyScorer returns a symmetric similarity in [0,1].
type RedundancyScorer interface {
	Similarity(ctx context.Context, a, b domain.Document) (float64, error)
}

// GenerationCapability produces the assistant reply for one turn.
type GenerationCapability interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CorpusLoader supplies the knowledge base. Unreadable items are skipped, not reported as errors.
type CorpusLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// CorpusSource lists and opens raw corpus files.
type CorpusSource interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// SessionStore persists conversation state per session.
type SessionStore interface {
	Create(ctx context.Context, state domain.ConversationState) error
	Get(ctx context.Context, sessionID string) (domain.ConversationState, error)
	Save(ctx context.Context, state domain.ConversationState) error
	Delete(ctx context.Context, sessionID string) error
}

// CorpusEvents announces corpus revisions to every running API instance.
type CorpusEvents interface {
	PublishCorpusChanged(ctx context.Context, revision string) error
	SubscribeCorpusChanged(ctx context.Context, handler func(context.Context, string) error) error
}
