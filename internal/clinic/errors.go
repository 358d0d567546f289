package clinic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBotNotFound is returned for an unknown bot id.
	ErrBotNotFound = errors.New("clinic: bot not found")
	// ErrRoundInProgress is returned when a round is opened while another one is still open.
	ErrRoundInProgress = errors.New("clinic: a round is already in progress")
	// ErrNoChat is returned when a round is requested before the chat was started.
	ErrNoChat = errors.New("clinic: chat not started")
)

// ValidationError rejects bad configuration or request input before it is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("clinic: invalid %s: %s", e.Field, e.Reason)
}

// BackendError wraps a failed generation call for a single bot.
type BackendError struct {
	BotID   string
	BotName string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("clinic: bot %s: %v", e.BotName, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// InvalidSelectionError is returned for a vote against a stale, consumed or out-of-range round.
type InvalidSelectionError struct {
	RoundID  string
	Position int
	Reason   string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("clinic: invalid selection %d for round %s: %s", e.Position, e.RoundID, e.Reason)
}

// DegradedRoundError reports that some bots failed to reply in a round.
// Failed names only the bots that failed, so the survivors stay anonymous.
type DegradedRoundError struct {
	Failed []string
	Total  int
}

func (e *DegradedRoundError) Error() string {
	return fmt.Sprintf("clinic: %d of %d bots failed to reply (%s)", len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}
