// ABOUTME: ExpressionType, Stage, Signals, and UserSettings are the vocabulary the decision
// ABOUTME: function and scheduler operate on; Stage bands are fixed, daily caps and quiet period are overridable defaults.

package proactive

import "time"

// ExpressionType is the closed set of proactive utterance kinds.
type ExpressionType string

const (
	Greeting    ExpressionType = "greeting"
	Care        ExpressionType = "care"
	Share       ExpressionType = "share"
	Suggestion  ExpressionType = "suggestion"
	Reflection  ExpressionType = "reflection"
	Celebration ExpressionType = "celebration"
	Farewell    ExpressionType = "farewell"
	Reminder    ExpressionType = "reminder"
)

// ValidExpressionType reports whether t is one of the eight closed variants.
func ValidExpressionType(t ExpressionType) bool {
	switch t {
	case Greeting, Care, Share, Suggestion, Reflection, Celebration, Farewell, Reminder:
		return true
	default:
		return false
	}
}

// Stage is the four-band relationship classification driven by cumulative
// interaction count.
type Stage string

const (
	StageInitial     Stage = "initial"
	StageDeveloping  Stage = "developing"
	StageEstablished Stage = "established"
	StageClose       Stage = "close"
)

// StageForCount maps a cumulative interaction count to its band:
// initial 0-5, developing 6-20, established 21-50, close 51+.
func StageForCount(count int) Stage {
	switch {
	case count <= 5:
		return StageInitial
	case count <= 20:
		return StageDeveloping
	case count <= 50:
		return StageEstablished
	default:
		return StageClose
	}
}

// defaultDailyCap is the per-stage default for max_expressions_per_day.
var defaultDailyCap = map[Stage]int{
	StageInitial:     1,
	StageDeveloping:  3,
	StageEstablished: 5,
	StageClose:       8,
}

// defaultMinQuiet is the default quiet period after the last human turn
// before a non-reminder proactive expression is allowed.
const defaultMinQuiet = 15 * time.Minute

// Signals is the per-tick sample the decision function consumes.
type Signals struct {
	Now                 time.Time
	LastHumanTurnAt      time.Time
	LocalHour            int
	TurnFrequency        float64
	LastResponseLatency  time.Duration
	DialogueType         string
	RecentTopic          string
	InteractionCount     int
}

// UserSettings configures one user's proactive behavior. Zero values fall
// back to the package defaults.
type UserSettings struct {
	Enabled              bool
	MinQuiet             time.Duration
	MaxExpressionsPerDay int
}

func (s UserSettings) minQuiet() time.Duration {
	if s.MinQuiet <= 0 {
		return defaultMinQuiet
	}
	return s.MinQuiet
}

func (s UserSettings) dailyCap(stage Stage) int {
	if s.MaxExpressionsPerDay > 0 {
		return s.MaxExpressionsPerDay
	}
	return defaultDailyCap[stage]
}

// State is one step in an expression's proposed -> planned -> generated ->
// queued -> (fired | cancelled) lifecycle.
type State string

const (
	StateProposed  State = "proposed"
	StatePlanned   State = "planned"
	StateGenerated State = "generated"
	StateQueued    State = "queued"
	StateFired     State = "fired"
	StateCancelled State = "cancelled"
)

// Expression is one proactive utterance moving through the state machine.
type Expression struct {
	ID          string
	UserID      string
	SessionID   string
	Type        ExpressionType
	Stage       Stage
	Content     string
	State       State
	ScheduledAt time.Time
}

// Dispatch is what the scheduler emits on the Fired channel for the HTTP
// boundary to push over the websocket transport.
type Dispatch struct {
	UserID    string
	SessionID string
	Content   string
	Type      ExpressionType
	Metadata  map[string]any
}
