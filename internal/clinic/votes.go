package clinic

import "maps"

// Tally counts round wins per bot id.
type Tally map[string]int

// Sum returns the total number of votes.
func (t Tally) Sum() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// Clone returns a copy of t.
func (t Tally) Clone() Tally {
	if t == nil {
		return Tally{}
	}
	return maps.Clone(t)
}

// Round is the server-side record of one generate/shuffle/vote cycle.
type Round struct {
	ID      string
	Message string
	Replies []Reply
	// Failed holds the names of bots that failed to reply.
	Failed []string
	Total  int

	mapping   Mapping
	consumed  bool
	prefixLen int
}

// Open reports whether the round still accepts a vote.
func (r *Round) Open() bool { return r != nil && !r.consumed }

// NewRound builds a round from shuffled replies and their hidden mapping.
func NewRound(id, message string, replies []Reply, mapping Mapping) *Round {
	return &Round{ID: id, Message: message, Replies: replies, mapping: mapping, Total: len(replies)}
}

// VoteRecorder applies a user's pick to the conversation and the tally.
type VoteRecorder struct {
	conv  *Conversation
	tally Tally
}

// NewVoteRecorder creates a recorder writing into conv and tally.
func NewVoteRecorder(conv *Conversation, tally Tally) *VoteRecorder {
	return &VoteRecorder{conv: conv, tally: tally}
}

// RecordVote appends the reply at position as a bot turn and counts a win for its bot.
// A round can be voted on at most once.
func (v *VoteRecorder) RecordVote(round *Round, position int) (Turn, error) {
	if round == nil {
		return Turn{}, &InvalidSelectionError{Position: position, Reason: "no open round"}
	}
	if round.consumed {
		return Turn{}, &InvalidSelectionError{RoundID: round.ID, Position: position, Reason: "round already voted on"}
	}
	botID, ok := round.mapping.BotAt(position)
	if !ok {
		return Turn{}, &InvalidSelectionError{RoundID: round.ID, Position: position, Reason: "position out of range"}
	}

	turn := Turn{Role: RoleAssistant, Text: round.Replies[position].Text, BotID: botID}
	v.conv.Append(turn)
	v.tally[botID]++
	round.consumed = true
	return turn, nil
}
