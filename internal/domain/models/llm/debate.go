package llm

import "time"

// Debate roles
const (
	DebateRoleAffirmative = "AFFIRMATIVE"
	DebateRoleNegative    = "NEGATIVE"
)

// Adversarial intensity bounds
const (
	MinAdversarialLevel = 1
	MaxAdversarialLevel = 4
)

// DebateSession is the persistent record of one two-model debate.
// TurnHistory is append-only and ordered by TurnNumber.
type DebateSession struct {
	ID               string       `json:"sessionId" db:"id"`
	Model1ID         string       `json:"model1Id" db:"model1_id"`
	Model2ID         string       `json:"model2Id" db:"model2_id"`
	Topic            string       `json:"topic" db:"topic"`
	AdversarialLevel int          `json:"adversarialLevel" db:"adversarial_level"`
	TurnHistory      []DebateTurn `json:"turnHistory"`
	CreatedAt        time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time    `json:"updatedAt" db:"updated_at"`
}

// DebateTurn is one model's contribution
type DebateTurn struct {
	TurnNumber int         `json:"turnNumber" db:"turn_number"`
	ModelID    string      `json:"modelId" db:"model_id"`
	Role       string      `json:"role" db:"role"`
	Content    string      `json:"content" db:"content"`
	Reasoning  string      `json:"reasoning,omitempty" db:"reasoning"`
	TokenUsage *TokenUsage `json:"tokenUsage,omitempty" db:"token_usage"`
	Cost       *Cost       `json:"cost,omitempty" db:"cost"`
	ResponseID string      `json:"responseId" db:"response_id"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
}

// Clone returns a copy of t whose usage and cost are not shared with t
func (t DebateTurn) Clone() DebateTurn {
	t.TokenUsage = t.TokenUsage.Clone()
	t.Cost = t.Cost.Clone()
	return t
}

// Clone returns a copy of s with its own turn history
func (s *DebateSession) Clone() *DebateSession {
	out := *s
	out.TurnHistory = make([]DebateTurn, len(s.TurnHistory))
	for i, turn := range s.TurnHistory {
		out.TurnHistory[i] = turn.Clone()
	}
	return &out
}

// NextTurnNumber returns the number of the turn that should be recorded next
func (s *DebateSession) NextTurnNumber() int {
	return len(s.TurnHistory) + 1
}

// SpeakerFor returns the model id and debate role for a turn number.
// Odd turns belong to model1 (AFFIRMATIVE), even turns to model2 (NEGATIVE).
func (s *DebateSession) SpeakerFor(turnNumber int) (modelID, role string) {
	if turnNumber%2 == 1 {
		return s.Model1ID, DebateRoleAffirmative
	}
	return s.Model2ID, DebateRoleNegative
}

// LastTurn returns the most recent turn, or nil for an empty history
func (s *DebateSession) LastTurn() *DebateTurn {
	if len(s.TurnHistory) == 0 {
		return nil
	}
	return &s.TurnHistory[len(s.TurnHistory)-1]
}
