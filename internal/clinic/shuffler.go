package clinic

import "math/rand/v2"

// Reply is one anonymized candidate as shown to the user.
type Reply struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// Mapping maps a display position to the bot that produced the reply.
type Mapping []string

// BotAt returns the bot id shown at position.
func (m Mapping) BotAt(position int) (string, bool) {
	if position < 0 || position >= len(m) {
		return "", false
	}
	return m[position], true
}

// Shuffler puts successful candidates in a fresh uniformly random order.
type Shuffler struct {
	rng *rand.Rand
}

// NewShuffler creates a Shuffler. A nil rng uses the runtime's randomly seeded source.
func NewShuffler(rng *rand.Rand) *Shuffler {
	return &Shuffler{rng: rng}
}

// Shuffle drops failed candidates and permutes the rest. The returned replies carry
// no bot information; the mapping must stay server-side.
func (s *Shuffler) Shuffle(candidates []Candidate) ([]Reply, Mapping) {
	var ok []Candidate
	for _, c := range candidates {
		if c.OK() {
			ok = append(ok, c)
		}
	}

	var perm []int
	if s.rng != nil {
		perm = s.rng.Perm(len(ok))
	} else {
		perm = rand.Perm(len(ok))
	}

	replies := make([]Reply, len(ok))
	mapping := make(Mapping, len(ok))
	for pos, idx := range perm {
		replies[pos] = Reply{Position: pos, Text: ok[idx].Text}
		mapping[pos] = ok[idx].BotID
	}
	return replies, mapping
}
