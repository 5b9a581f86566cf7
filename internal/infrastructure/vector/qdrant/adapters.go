package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const embedBatchSize = 32

// pointID is stable across re-indexing of the same corpus.
func pointID(collection string, ordinal int, content string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(collection+"\x00"+strconv.Itoa(ordinal)+"\x00"+content)).String()
}

// DenseAdapter searches one embedding space.
type DenseAdapter struct {
	name     string
	client   *Client
	embedder ports.Embedder
}

func NewDenseAdapter(name string, client *Client, embedder ports.Embedder) *DenseAdapter {
	return &DenseAdapter{name: name, client: client, embedder: embedder}
}

func (a *DenseAdapter) Name() string { return a.name }

func (a *DenseAdapter) Search(ctx context.Context, query string, k int) (domain.CandidateSet, error) {
	vector, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s embed query: %w", a.name, err)
	}
	docs, err := a.client.searchDense(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", a.name, err)
	}
	return domain.CandidateSet(docs), nil
}

// IndexDocuments replaces the collection content with docs.
func (a *DenseAdapter) IndexDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]point, 0, len(docs))
	size := 0
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Content)
		}
		vectors, err := a.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("%s embed documents: %w", a.name, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%s embed documents: got %d vectors for %d texts", a.name, len(vectors), len(texts))
		}
		for i, vector := range vectors {
			if size == 0 {
				size = len(vector)
			}
			if len(vector) != size {
				return fmt.Errorf("%s embed documents: mixed vector sizes %d and %d", a.name, size, len(vector))
			}
			ordinal := start + i
			points = append(points, point{
				ID:      pointID(a.client.Collection(), ordinal, docs[ordinal].Content),
				Vector:  vector,
				Payload: documentPayload(docs[ordinal]),
			})
		}
	}

	if err := a.client.RecreateDense(ctx, size); err != nil {
		return fmt.Errorf("%s recreate collection: %w", a.name, err)
	}
	if err := a.client.upsert(ctx, points); err != nil {
		return fmt.Errorf("%s upsert: %w", a.name, err)
	}
	return nil
}

// LexicalAdapter ranks documents by BM25-style sparse vectors.
type LexicalAdapter struct {
	name   string
	client *Client
}

func NewLexicalAdapter(name string, client *Client) *LexicalAdapter {
	return &LexicalAdapter{name: name, client: client}
}

func (a *LexicalAdapter) Name() string { return a.name }

func (a *LexicalAdapter) Search(ctx context.Context, query string, k int) (domain.CandidateSet, error) {
	docs, err := a.client.searchSparse(ctx, encodeSparseQuery(query), k)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", a.name, err)
	}
	return domain.CandidateSet(docs), nil
}

// IndexDocuments replaces the collection content with docs. Documents without
// any indexable term are skipped.
func (a *LexicalAdapter) IndexDocuments(ctx context.Context, docs []domain.Document) error {
	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		vector := encodeSparseDocument(doc.Content, doc.Meta(domain.MetaTitle))
		if len(vector.Indices) == 0 {
			continue
		}
		points = append(points, point{
			ID:      pointID(a.client.Collection(), i, doc.Content),
			Vector:  map[string]any{sparseVectorName: vector},
			Payload: documentPayload(doc),
		})
	}

	if err := a.client.RecreateSparse(ctx); err != nil {
		return fmt.Errorf("%s recreate collection: %w", a.name, err)
	}
	if err := a.client.upsert(ctx, points); err != nil {
		return fmt.Errorf("%s upsert: %w", a.name, err)
	}
	return nil
}
