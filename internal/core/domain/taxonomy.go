package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeywordRule is one row of an ordered classification table.
type KeywordRule struct {
	Label    string   `yaml:"label" json:"label"`
	Title    string   `yaml:"title,omitempty" json:"title,omitempty"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// MatchesLower reports whether any keyword occurs in text at the start of a
// word. A keyword may end inside a word ("compara" matches "comparación") but
// never starts inside one ("escribe" does not match "describe"). text must
// already be lowercased.
func (r KeywordRule) MatchesLower(text string) bool {
	for _, kw := range r.Keywords {
		kw = strings.ToLower(kw)
		if kw != "" && containsAtWordStart(text, kw) {
			return true
		}
	}
	return false
}

func containsAtWordStart(text, kw string) bool {
	if first, _ := utf8.DecodeRuneInString(kw); !isWordRune(first) {
		return strings.Contains(text, kw)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		if prev, _ := utf8.DecodeLastRuneInString(text[:i]); i == 0 || !isWordRune(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		from = i + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Taxonomy bundles every keyword table the service classifies with.
type Taxonomy struct {
	CoreCategories    []KeywordRule `yaml:"core_categories"`
	ContextCategories []KeywordRule `yaml:"context_categories"`
	ContextFallback   KeywordRule   `yaml:"context_fallback"`
	IntentGroups      []KeywordRule `yaml:"intent_groups"`
	SubjectPatterns   []string      `yaml:"subject_patterns"`
}

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		CoreCategories: []KeywordRule{
			{Label: "perfiles", Keywords: []string{"perfil a", "perfil b", "perfil c", "perfil d", "perfiles comportamentales"}},
			{Label: "normas", Keywords: []string{"principios rectores", "política y reglas de comunicación", "tono general"}},
			{Label: "problemas", Keywords: []string{"problemas cognitivos", "ecoansiedad", "baja autoeficacia", "polarización"}},
			{Label: "segmentacion", Keywords: []string{"adolescencia", "juventud adulta", "adultez media", "adultez madura", "senior"}},
			{Label: "insights", Keywords: []string{"autoeficacia", "inercia", "dragones", "normas sociales", "distancia psicológica"}},
		},
		ContextCategories: []KeywordRule{
			{Label: "perfiles", Title: "PERFILES COMPORTAMENTALES", Keywords: []string{
				"perfil a", "perfil b", "perfil c", "perfil d", "perfiles comportamentales",
				"activista estratégica", "eco-consumidor", "aliado institucional", "simpatizante distante",
			}},
			{Label: "normas", Title: "NORMAS DE COMUNICACIÓN", Keywords: []string{
				"principios rectores", "política y reglas de comunicación", "tono general", "normas de comunicación", "no culpabilizar",
			}},
			{Label: "problemas", Title: "PROBLEMAS DE LA AUDIENCIA", Keywords: []string{
				"problemas cognitivos", "ecoansiedad", "baja autoeficacia", "polarización", "barreras",
			}},
			{Label: "segmentacion", Title: "SEGMENTACIÓN POR EDAD", Keywords: []string{
				"adolescencia", "juventud adulta", "adultez media", "adultez madura", "senior", "segmentación por edad",
			}},
			{Label: "insights", Title: "INSIGHTS PSICOLÓGICOS", Keywords: []string{
				"autoeficacia", "inercia", "dragones", "normas sociales", "distancia psicológica", "insight",
			}},
		},
		ContextFallback: KeywordRule{Label: "otros", Title: "OTROS DATOS RELEVANTES"},
		IntentGroups: []KeywordRule{
			{Label: string(GoalIdentifyProfile), Keywords: []string{
				"qué perfil", "que perfil", "cuál es su perfil", "cual es su perfil", "identifica", "identificar",
				"perfil comportamental", "a qué perfil", "clasifica",
			}},
			{Label: string(GoalGenerateMessage), Keywords: []string{
				"mensaje", "redacta", "escribe", "escríbeme", "genera un", "genérame", "copy", "texto para", "email", "correo", "publicación",
			}},
			{Label: string(GoalCampaignAdvice), Keywords: []string{
				"campaña", "segmenta", "segmentación", "estrategia", "canal", "recomienda", "recomendación",
			}},
			{Label: string(GoalCompareProfiles), Keywords: []string{
				"compara", "comparar", "comparación", "diferencia", "diferencias", "versus", " vs ",
			}},
		},
		SubjectPatterns: []string{
			`\b(soy|somos)\b`,
			`\b\d{1,3}\s*años\b`,
			`\b(socio|socia|socios|socias|miembro|miembros|voluntario|voluntaria|voluntarios|voluntarias|colaborador|colaboradora|colaboradores|colaboradoras|donante|donantes)\b`,
			`\b(mi público|mi audiencia|me dirijo a|el público objetivo es)\b`,
		},
	}
}
