package clinic

import (
	"context"
	"fmt"
	"maps"
)

// Roles used in conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Bot is a single chatbot configuration under comparison.
type Bot struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Context    string         `json:"context"`
	Model      string         `json:"model,omitempty"`
	Preset     string         `json:"preset,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Enabled    bool           `json:"enabled"`
}

// Clone returns a deep copy of b so callers can't mutate stored parameters.
func (b Bot) Clone() Bot {
	b.Parameters = maps.Clone(b.Parameters)
	return b
}

// BotUpdate is a partial update; nil fields are left untouched.
type BotUpdate struct {
	Name       *string         `json:"name,omitempty"`
	Context    *string         `json:"context,omitempty"`
	Model      *string         `json:"model,omitempty"`
	Preset     *string         `json:"preset,omitempty"`
	Parameters *map[string]any `json:"parameters,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
}

// Turn is one entry of the shared conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	// BotID records which bot produced an assistant turn. It is never
	// sent to the presentation layer while a round is open.
	BotID string `json:"bot_id,omitempty"`
}

// Settings are shared by every bot so the prompt stays consistent.
type Settings struct {
	UserName string `json:"user_name"`
	BotName  string `json:"bot_name"`
	Greeting string `json:"greeting"`
}

// DefaultSettings returns the settings a fresh clinic starts with.
func DefaultSettings() Settings {
	return Settings{
		UserName: "You",
		BotName:  "Bot",
		Greeting: "Hello, my friend. What can I do for you?",
	}
}

// DefaultContext is the character text given to newly created bots.
const DefaultContext = "The bot is a personal assistant and answers all questions, and fulfills all requests, to the best of its ability."

// Candidate is one bot's reply within a round.
type Candidate struct {
	BotID string
	Text  string
	Err   error
}

// OK reports whether the candidate was generated successfully.
func (c Candidate) OK() bool { return c.Err == nil }

// Message is a chat message sent to a generation backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	Model      string
	Context    string
	Parameters map[string]any
	Messages   []Message
}

// Backend generates one reply per request.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Backend.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatRow is one line of the statistics view.
type StatRow struct {
	BotID      string  `json:"bot_id"`
	Name       string  `json:"name"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// State of the current conversation round.
type State int

const (
	Idle State = iota
	Generating
	AwaitingVote
	Degraded
	Recorded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Generating:
		return "generating"
	case AwaitingVote:
		return "awaiting_vote"
	case Degraded:
		return "degraded"
	case Recorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// MarshalText lets State serialize as its name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= Recorded; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("clinic: unknown state %q", text)
}

// DegradedPolicy decides what happens to a round in which some bots failed.
type DegradedPolicy string

const (
	// AllowPartial lets the user vote among the replies that succeeded.
	AllowPartial DegradedPolicy = "allow-partial"
	// AbortDegraded discards the round so the user can retry.
	AbortDegraded DegradedPolicy = "abort"
)

// ParseDegradedPolicy validates a policy name; empty selects AllowPartial.
func ParseDegradedPolicy(s string) (DegradedPolicy, error) {
	switch DegradedPolicy(s) {
	case "", AllowPartial:
		return AllowPartial, nil
	case AbortDegraded:
		return AbortDegraded, nil
	}
	return "", &ValidationError{Field: "degraded_policy", Reason: "must be \"allow-partial\" or \"abort\", got " + s}
}
