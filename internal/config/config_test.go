package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_K", "")
	t.Setenv("CORE_SET_CAP", "")
	t.Setenv("REDUNDANCY_THRESHOLD", "")
	t.Setenv("HISTORY_MAX_MESSAGES", "")
	t.Setenv("TURN_TIMEOUT", "")

	cfg := Load()
	if cfg.RetrievalK != 3 {
		t.Fatalf("expected default retrieval k 3, got %d", cfg.RetrievalK)
	}
	if cfg.CoreSetCap != 8 {
		t.Fatalf("expected default core set cap 8, got %d", cfg.CoreSetCap)
	}
	if cfg.RedundancyThreshold != 0.95 {
		t.Fatalf("expected default threshold 0.95, got %v", cfg.RedundancyThreshold)
	}
	if cfg.HistoryMaxMessages != 6 {
		t.Fatalf("expected default history bound 6, got %d", cfg.HistoryMaxMessages)
	}
	if cfg.TurnTimeout != 120*time.Second {
		t.Fatalf("expected default turn timeout 120s, got %v", cfg.TurnTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_K", "5")
	t.Setenv("REDUNDANCY_THRESHOLD", "0.9")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("EVENTS_ENABLED", "false")

	cfg := Load()
	if cfg.RetrievalK != 5 {
		t.Fatalf("expected retrieval k 5, got %d", cfg.RetrievalK)
	}
	if cfg.RedundancyThreshold != 0.9 {
		t.Fatalf("expected threshold 0.9, got %v", cfg.RedundancyThreshold)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected session ttl 30m, got %v", cfg.SessionTTL)
	}
	if cfg.EventsEnabled {
		t.Fatalf("expected events disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("REDUNDANCY_THRESHOLD", "high")
	t.Setenv("TURN_TIMEOUT", "soon")

	cfg := Load()
	if cfg.RedundancyThreshold != 0.95 || cfg.TurnTimeout != 120*time.Second {
		t.Fatalf("expected fallbacks, got %v / %v", cfg.RedundancyThreshold, cfg.TurnTimeout)
	}
}

func TestLoadTaxonomyDefaultsWithoutPath(t *testing.T) {
	tax, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("LoadTaxonomy() error = %v", err)
	}
	if len(tax.IntentGroups) != 4 || tax.IntentGroups[0].Label != string(domain.GoalIdentifyProfile) {
		t.Fatalf("unexpected default intent groups: %+v", tax.IntentGroups)
	}
}

func TestLoadTaxonomyOverlaysFileTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := `
context_categories:
  - label: perfiles
    title: PERFILES
    keywords: ["perfil"]
  - label: normas
    title: NORMAS
    keywords: ["norma"]
subject_patterns:
  - '\bsoy\b'
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}

	tax, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy() error = %v", err)
	}
	if len(tax.ContextCategories) != 2 || tax.ContextCategories[1].Title != "NORMAS" {
		t.Fatalf("context categories not replaced: %+v", tax.ContextCategories)
	}
	if len(tax.SubjectPatterns) != 1 || tax.SubjectPatterns[0] != `\bsoy\b` {
		t.Fatalf("subject patterns not replaced: %+v", tax.SubjectPatterns)
	}
	if len(tax.CoreCategories) != len(domain.DefaultTaxonomy().CoreCategories) {
		t.Fatalf("core categories should keep defaults")
	}
	if tax.ContextFallback.Label != "otros" {
		t.Fatalf("fallback should keep default, got %+v", tax.ContextFallback)
	}
}

func TestLoadTaxonomyRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte("intent_groups: [unclosed"), 0o644); err != nil {
		t.Fatalf("write taxonomy: %v", err)
	}
	if _, err := LoadTaxonomy(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadTaxonomyRejectsUnlabeledRule(t *testing.T) {
	if _, err := overlayTaxonomy(domain.DefaultTaxonomy(), []byte("core_categories:\n  - keywords: [x]\n")); err == nil {
		t.Fatalf("expected error for unlabeled rule")
	}
}

func TestLoadAcceptsZeroRedundancyThreshold(t *testing.T) {
	t.Setenv("REDUNDANCY_THRESHOLD", "0")
	if cfg := Load(); cfg.RedundancyThreshold != 0 {
		t.Fatalf("expected threshold 0 to be kept, got %v", cfg.RedundancyThreshold)
	}
}

func TestLoadRejectsOutOfRangeRedundancyThreshold(t *testing.T) {
	for _, raw := range []string{"1.5", "-0.1"} {
		t.Setenv("REDUNDANCY_THRESHOLD", raw)
		if cfg := Load(); cfg.RedundancyThreshold != 0.95 {
			t.Fatalf("REDUNDANCY_THRESHOLD=%s: expected fallback 0.95, got %v", raw, cfg.RedundancyThreshold)
		}
	}
}

func TestLoadRedundancyEmbedModelDefaultsToSecondSpace(t *testing.T) {
	t.Setenv("REDUNDANCY_EMBED_MODEL", "")
	t.Setenv("OLLAMA_EMBED_MODEL_B", "bge-m3")
	if cfg := Load(); cfg.RedundancyEmbedModel != "bge-m3" {
		t.Fatalf("expected scorer to default to embed model B, got %q", cfg.RedundancyEmbedModel)
	}

	t.Setenv("REDUNDANCY_EMBED_MODEL", "nomic-embed-text")
	if cfg := Load(); cfg.RedundancyEmbedModel != "nomic-embed-text" {
		t.Fatalf("expected explicit scorer model, got %q", cfg.RedundancyEmbedModel)
	}
}

func TestLoadResilienceOverrides(t *testing.T) {
	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "")
	t.Setenv("RESILIENCE_BREAKER_OPEN_TIMEOUT", "")
	if cfg := Load(); cfg.ResilienceRetryMaxAttempts != 0 || cfg.ResilienceBreakerOpenTimeout != 0 {
		t.Fatalf("unset overrides must stay zero so backend profiles apply: %+v", cfg)
	}

	t.Setenv("RESILIENCE_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RESILIENCE_RETRY_INITIAL_BACKOFF", "250ms")
	t.Setenv("RESILIENCE_RETRY_MAX_BACKOFF", "3s")
	t.Setenv("RESILIENCE_BREAKER_FAILURE_RATIO", "0.7")
	t.Setenv("RESILIENCE_BREAKER_OPEN_TIMEOUT", "45s")
	t.Setenv("RESILIENCE_BREAKER_DISABLED", "true")

	cfg := Load()
	if cfg.ResilienceRetryMaxAttempts != 5 ||
		cfg.ResilienceRetryInitialBackoff != 250*time.Millisecond ||
		cfg.ResilienceRetryMaxBackoff != 3*time.Second ||
		cfg.ResilienceBreakerFailureRatio != 0.7 ||
		cfg.ResilienceBreakerOpenTimeout != 45*time.Second ||
		!cfg.ResilienceBreakerDisabled {
		t.Fatalf("unexpected resilience overrides: %+v", cfg)
	}
}
