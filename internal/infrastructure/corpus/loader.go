package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

type extractFunc func(raw []byte, base map[string]string) ([]domain.Document, error)

// Loader reads every supported file of a CorpusSource and returns chunked
// documents. Files that cannot be read or parsed are logged and skipped.
type Loader struct {
	source   ports.CorpusSource
	chunker  ports.Chunker
	maxBytes int64
	byExt    map[string]extractFunc
}

func NewLoader(source ports.CorpusSource, chunker ports.Chunker) *Loader {
	return &Loader{
		source:   source,
		chunker:  chunker,
		maxBytes: 64 << 20,
		byExt: map[string]extractFunc{
			".txt":  extractText,
			".md":   extractText,
			".csv":  extractCSV,
			".pdf":  extractPDF,
			".xlsx": extractXLSX,
		},
	}
}

func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	keys, err := l.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	var out []domain.Document
	loaded := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := strings.ToLower(path.Ext(key))
		extract, ok := l.byExt[ext]
		if !ok {
			slog.Debug("corpus_item_unsupported", "key", key)
			continue
		}

		docs, err := l.loadOne(ctx, key, extract)
		if err != nil {
			slog.Warn("corpus_item_skipped", "key", key, "error", err)
			continue
		}
		loaded++
		out = append(out, l.chunk(docs)...)
	}

	slog.Info("corpus_loaded", "files", loaded, "listed", len(keys), "documents", len(out))
	return out, nil
}

func (l *Loader) loadOne(ctx context.Context, key string, extract extractFunc) ([]domain.Document, error) {
	rc, err := l.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(raw)) > l.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", l.maxBytes)
	}

	base := map[string]string{
		domain.MetaSource: key,
		domain.MetaTitle:  titleFromKey(key),
	}
	return extract(raw, base)
}

func (l *Loader) chunk(docs []domain.Document) []domain.Document {
	if l.chunker == nil {
		return docs
	}
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		for i, piece := range l.chunker.Split(doc.Content) {
			chunk := domain.NewDocument(piece, doc.Metadata)
			if chunk.Metadata == nil {
				chunk.Metadata = map[string]string{}
			}
			chunk.Metadata[domain.MetaChunk] = strconv.Itoa(i)
			out = append(out, chunk)
		}
	}
	return out
}

func titleFromKey(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

func withMeta(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func extractText(raw []byte, base map[string]string) ([]domain.Document, error) {
	text := strings.TrimSpace(decodeText(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.Document{domain.NewDocument(text, base)}, nil
}

func readerOf(raw []byte) *bytes.Reader {
	return bytes.NewReader(raw)
}
