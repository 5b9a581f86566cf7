package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// LoadTaxonomy returns the built-in tables, with every table present in the
// YAML file at path replacing its default. An empty path yields the defaults.
func LoadTaxonomy(path string) (domain.Taxonomy, error) {
	tax := domain.DefaultTaxonomy()
	if path == "" {
		return tax, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	return overlayTaxonomy(tax, raw)
}

func overlayTaxonomy(tax domain.Taxonomy, raw []byte) (domain.Taxonomy, error) {
	var file domain.Taxonomy
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}

	if len(file.CoreCategories) > 0 {
		tax.CoreCategories = file.CoreCategories
	}
	if len(file.ContextCategories) > 0 {
		tax.ContextCategories = file.ContextCategories
	}
	if file.ContextFallback.Label != "" {
		tax.ContextFallback = file.ContextFallback
	}
	if len(file.IntentGroups) > 0 {
		tax.IntentGroups = file.IntentGroups
	}
	if len(file.SubjectPatterns) > 0 {
		tax.SubjectPatterns = file.SubjectPatterns
	}

	for _, rule := range append(append([]domain.KeywordRule{}, tax.CoreCategories...), tax.ContextCategories...) {
		if rule.Label == "" {
			return domain.Taxonomy{}, errors.New("taxonomy rule without label")
		}
	}
	return tax, nil
}
