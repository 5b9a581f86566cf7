package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// ProfileMarker prefixes the line in which the model states the profile it assigned.
const ProfileMarker = "PERFIL_ACTUAL:"

// IntentTracker derives the next conversation state from user text.
type IntentTracker struct {
	subjectRules []*regexp.Regexp
	goalGroups   []domain.KeywordRule
}

func NewIntentTracker(taxonomy domain.Taxonomy) (*IntentTracker, error) {
	rules := make([]*regexp.Regexp, 0, len(taxonomy.SubjectPatterns))
	for _, pattern := range taxonomy.SubjectPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile subject pattern %q: %w", pattern, err)
		}
		rules = append(rules, re)
	}

	groups := make([]domain.KeywordRule, 0, len(taxonomy.IntentGroups))
	for _, g := range taxonomy.IntentGroups {
		goal := domain.ParseGoal(g.Label)
		if goal == domain.GoalNone {
			return nil, fmt.Errorf("unknown goal in intent group: %q", g.Label)
		}
		groups = append(groups, g)
	}

	return &IntentTracker{subjectRules: rules, goalGroups: groups}, nil
}

// Update returns the state after observing text. The input state is not modified.
//
// A text that describes someone replaces the subject with the text itself and
// clears the previously assigned profile. A text without any goal keyword
// keeps the previous goal.
func (t *IntentTracker) Update(state domain.ConversationState, text string) domain.ConversationState {
	next := state.Clone()
	lower := strings.ToLower(text)

	if t.describesSubject(lower) {
		next.Subject = text
		next.BehavioralProfile = ""
	}
	if goal, ok := t.ClassifyGoal(text); ok {
		next.Goal = goal
	}
	return next
}

// ClassifyGoal returns the goal of the first group with a keyword hit.
func (t *IntentTracker) ClassifyGoal(text string) (domain.Goal, bool) {
	lower := strings.ToLower(text)
	for _, g := range t.goalGroups {
		if g.MatchesLower(lower) {
			return domain.Goal(g.Label), true
		}
	}
	return domain.GoalNone, false
}

func (t *IntentTracker) describesSubject(lower string) bool {
	for _, re := range t.subjectRules {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// ExtractProfileMarker returns the value of the first marker line with a non-empty value.
func ExtractProfileMarker(response string) (string, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ProfileMarker) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, ProfileMarker))
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// CaptureProfile sets the behavioral profile when the response carries a marker line.
func CaptureProfile(state domain.ConversationState, response string) (domain.ConversationState, bool) {
	next := state.Clone()
	value, ok := ExtractProfileMarker(response)
	if ok {
		next.BehavioralProfile = value
	}
	return next, ok
}
