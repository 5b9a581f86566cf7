package usecase

import (
	"strings"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// ContextStructurer groups documents into labeled sections for the prompt.
type ContextStructurer struct {
	categories []domain.KeywordRule
	fallback   domain.KeywordRule
}

func NewContextStructurer(categories []domain.KeywordRule, fallback domain.KeywordRule) *ContextStructurer {
	if strings.TrimSpace(fallback.Label) == "" {
		fallback.Label = "otros"
	}
	if strings.TrimSpace(fallback.Title) == "" {
		fallback.Title = strings.ToUpper(fallback.Label)
	}
	return &ContextStructurer{
		categories: append([]domain.KeywordRule(nil), categories...),
		fallback:   fallback,
	}
}

// Classify returns the label of the first category matching doc, or the fallback label.
func (s *ContextStructurer) Classify(doc domain.Document) string {
	lower := strings.ToLower(doc.Content)
	for _, c := range s.categories {
		if c.MatchesLower(lower) {
			return c.Label
		}
	}
	return s.fallback.Label
}

// Structure renders only non-empty categories, in table order, fallback last.
func (s *ContextStructurer) Structure(docs domain.FusedSet) string {
	if len(docs) == 0 {
		return ""
	}

	groups := make(map[string][]string, len(s.categories)+1)
	for _, doc := range docs {
		label := s.Classify(doc)
		groups[label] = append(groups[label], doc.Content)
	}

	sections := make([]string, 0, len(groups))
	render := func(rule domain.KeywordRule) {
		members := groups[rule.Label]
		if len(members) == 0 {
			return
		}
		title := rule.Title
		if title == "" {
			title = strings.ToUpper(rule.Label)
		}
		sections = append(sections, "### "+title+"\n"+strings.Join(members, "\n\n"))
		delete(groups, rule.Label)
	}
	for _, c := range s.categories {
		render(c)
	}
	render(s.fallback)

	return strings.Join(sections, "\n\n")
}
