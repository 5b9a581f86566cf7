package domain

import "time"

type Goal string

const (
	GoalNone            Goal = "none"
	GoalIdentifyProfile Goal = "identify_profile"
	GoalGenerateMessage Goal = "generate_message"
	GoalCampaignAdvice  Goal = "campaign_advice"
	GoalCompareProfiles Goal = "compare_profiles"
)

func (g Goal) Valid() bool {
	switch g {
	case GoalNone, GoalIdentifyProfile, GoalGenerateMessage, GoalCampaignAdvice, GoalCompareProfiles:
		return true
	default:
		return false
	}
}

// ParseGoal maps unknown or empty values to GoalNone.
func ParseGoal(raw string) Goal {
	g := Goal(raw)
	if !g.Valid() {
		return GoalNone
	}
	return g
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the per-session memory carried across turns.
// Empty Subject or BehavioralProfile means the value is not set.
type ConversationState struct {
	SessionID         string    `json:"session_id"`
	Subject           string    `json:"subject,omitempty"`
	BehavioralProfile string    `json:"behavioral_profile,omitempty"`
	Goal              Goal      `json:"goal"`
	History           []Message `json:"history"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewConversationState(sessionID string, now time.Time) ConversationState {
	return ConversationState{
		SessionID: sessionID,
		Goal:      GoalNone,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy whose history can be modified independently.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.History = make([]Message, len(s.History))
	copy(out.History, s.History)
	return out
}

// AppendMessage returns a copy with msg appended and only the newest max messages retained.
// A non-positive max keeps the full history.
func (s ConversationState) AppendMessage(msg Message, max int) ConversationState {
	out := s.Clone()
	out.History = append(out.History, msg)
	if max > 0 && len(out.History) > max {
		out.History = append([]Message(nil), out.History[len(out.History)-max:]...)
	}
	return out
}

// GenerationRequest is everything the generation step receives for one turn.
type GenerationRequest struct {
	Context  string
	Question string
	Subject  string
	Profile  string
	Goal     Goal
	History  string
}

type TurnResult struct {
	SessionID         string     `json:"session_id"`
	Answer            string     `json:"answer"`
	Goal              Goal       `json:"goal"`
	Subject           string     `json:"subject,omitempty"`
	BehavioralProfile string     `json:"behavioral_profile,omitempty"`
	Sources           []Document `json:"sources"`
	Degraded          bool       `json:"degraded,omitempty"`
}

// TurnLimits bound one turn. RedundancyThreshold is used as given within [0, 1].
type TurnLimits struct {
	HistoryMaxMessages  int           `json:"history_max_messages"`
	RedundancyThreshold float64       `json:"redundancy_threshold"`
	TurnTimeout         time.Duration `json:"turn_timeout"`
}
