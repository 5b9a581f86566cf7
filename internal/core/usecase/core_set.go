package usecase

import (
	"strings"
	"sync/atomic"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

const defaultCoreSetCap = 8

// SelectCoreSet walks the corpus in order and keeps every document whose
// lowercased content contains a keyword of any rule, stopping at limit.
// Documents repeating the content of an already selected one are skipped.
func SelectCoreSet(corpus []domain.Document, rules []domain.KeywordRule, limit int) domain.CoreDocumentSet {
	if limit <= 0 {
		limit = defaultCoreSetCap
	}

	out := make(domain.CoreDocumentSet, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, doc := range corpus {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[doc.Content]; dup {
			continue
		}
		lower := strings.ToLower(doc.Content)
		for _, rule := range rules {
			if rule.MatchesLower(lower) {
				out = append(out, doc)
				seen[doc.Content] = struct{}{}
				break
			}
		}
	}
	return out
}

// CoreSetHolder publishes the current core set to concurrent readers.
// Rebuild swaps the whole set; readers never observe a partial update.
type CoreSetHolder struct {
	rules []domain.KeywordRule
	limit int
	set   atomic.Pointer[domain.CoreDocumentSet]
}

func NewCoreSetHolder(rules []domain.KeywordRule, limit int) *CoreSetHolder {
	if limit <= 0 {
		limit = defaultCoreSetCap
	}
	h := &CoreSetHolder{
		rules: append([]domain.KeywordRule(nil), rules...),
		limit: limit,
	}
	empty := domain.CoreDocumentSet{}
	h.set.Store(&empty)
	return h
}

func (h *CoreSetHolder) Rebuild(corpus []domain.Document) domain.CoreDocumentSet {
	next := SelectCoreSet(corpus, h.rules, h.limit)
	h.set.Store(&next)
	return next
}

// Current returns the published set. Callers must not modify it.
func (h *CoreSetHolder) Current() domain.CoreDocumentSet {
	return *h.set.Load()
}

func (h *CoreSetHolder) Limit() int {
	return h.limit
}
