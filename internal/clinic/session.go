package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SavedState is what survives a restart.
type SavedState struct {
	Bots     []Bot    `json:"bots"`
	Tally    Tally    `json:"tally"`
	Settings Settings `json:"settings"`
	// Saved is set by a Store when the state comes from an earlier Save,
	// even one that left no bots behind.
	Saved bool `json:"-"`
}

// Store persists SavedState. Load returns a zero SavedState when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (SavedState, error)
	Save(ctx context.Context, st SavedState) error
}

// RoundView is the anonymized view of a round handed to the presentation layer.
type RoundView struct {
	ID      string   `json:"id"`
	State   State    `json:"state"`
	Message string   `json:"message"`
	Replies []Reply  `json:"replies"`
	Failed  []string `json:"failed,omitempty"`
	Total   int      `json:"total"`
}

// Degraded reports whether some bots failed to reply.
func (v RoundView) Degraded() bool { return len(v.Failed) > 0 }

// Session ties the clinic components together for a single user.
type Session struct {
	mu       sync.Mutex
	store    Store
	gen      *Generator
	shuffler *Shuffler
	configs  *ConfigStore
	tally    Tally
	settings Settings
	policy   DegradedPolicy
	logf     func(format string, args ...any)

	conv  *Conversation
	round *Round
	state State
	fresh bool
}

// Option configures a Session.
type Option func(*Session)

// WithMaxBots caps the number of configured bots.
func WithMaxBots(n int) Option {
	return func(s *Session) { s.configs = NewConfigStore(n) }
}

// WithDegradedPolicy selects how rounds with failed bots are handled.
func WithDegradedPolicy(p DegradedPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithShuffler replaces the default shuffler, mostly for deterministic tests.
func WithShuffler(sh *Shuffler) Option {
	return func(s *Session) { s.shuffler = sh }
}

// WithLogger receives session events.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *Session) { s.logf = logf }
}

// NewSession creates a session. Call Load to restore persisted state.
func NewSession(store Store, gen *Generator, opts ...Option) *Session {
	s := &Session{
		store:    store,
		gen:      gen,
		shuffler: NewShuffler(nil),
		configs:  NewConfigStore(DefaultMaxBots),
		tally:    Tally{},
		settings: DefaultSettings(),
		policy:   AllowPartial,
		logf:     func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores bots, votes and settings from the store.
func (s *Session) Load(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("clinic: loading state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.configs.replace(st.Bots); err != nil {
		return fmt.Errorf("clinic: loading state: %w", err)
	}
	s.tally = st.Tally.Clone()
	s.fresh = !st.Saved
	if st.Settings != (Settings{}) {
		s.settings = st.Settings
	}
	s.logf("loaded %d bots, %d votes", s.configs.Len(), s.tally.Sum())
	return nil
}

// Fresh reports whether the last Load found nothing ever saved.
func (s *Session) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh
}

// Save persists bots, votes and settings.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	st := s.savedState()
	s.mu.Unlock()
	return s.save(ctx, st)
}

func (s *Session) save(ctx context.Context, st SavedState) error {
	if err := s.store.Save(ctx, st); err != nil {
		return fmt.Errorf("clinic: saving state: %w", err)
	}
	s.mu.Lock()
	s.fresh = false
	s.mu.Unlock()
	return nil
}

// savedState must be called with s.mu held. Votes for removed bots are dropped.
func (s *Session) savedState() SavedState {
	bots := s.configs.List()
	tally := Tally{}
	for _, b := range bots {
		if n := s.tally[b.ID]; n > 0 {
			tally[b.ID] = n
		}
	}
	return SavedState{Bots: bots, Tally: tally, Settings: s.settings}
}

// Bots lists all configured bots.
func (s *Session) Bots() []Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs.List()
}

// Bot returns one bot.
func (s *Session) Bot(id string) (Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configs.Get(id)
}

// AddBot validates and stores a new bot.
func (s *Session) AddBot(ctx context.Context, b Bot) (Bot, error) {
	s.mu.Lock()
	added, err := s.configs.Add(b)
	st := s.savedState()
	s.mu.Unlock()
	if err != nil {
		return Bot{}, err
	}
	s.logf("added bot %s (%s)", added.Name, added.ID)
	return added, s.save(ctx, st)
}

// UpdateBot applies a partial update to a bot.
func (s *Session) UpdateBot(ctx context.Context, id string, u BotUpdate) (Bot, error) {
	s.mu.Lock()
	updated, err := s.configs.Update(id, u)
	st := s.savedState()
	s.mu.Unlock()
	if err != nil {
		return Bot{}, err
	}
	return updated, s.save(ctx, st)
}

// RemoveBot deletes a bot together with its votes.
func (s *Session) RemoveBot(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.configs.Remove(id)
	if err == nil {
		delete(s.tally, id)
	}
	st := s.savedState()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.save(ctx, st)
}

// Settings returns the shared prompt settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the shared prompt settings. They apply from the next Start.
func (s *Session) SetSettings(ctx context.Context, set Settings) error {
	set.UserName = strings.TrimSpace(set.UserName)
	set.BotName = strings.TrimSpace(set.BotName)
	if set.UserName == "" {
		return &ValidationError{Field: "user_name", Reason: "must not be empty"}
	}
	if set.BotName == "" {
		return &ValidationError{Field: "bot_name", Reason: "must not be empty"}
	}
	s.mu.Lock()
	s.settings = set
	st := s.savedState()
	s.mu.Unlock()
	return s.save(ctx, st)
}

// Start begins a new chat from the greeting. Any open round is dropped.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = NewConversation(s.settings)
	s.round = nil
	s.state = Idle
	s.logf("chat started with %d enabled bots", len(s.configs.Enabled()))
}

// Stop ends the chat and discards its messages. Votes are kept.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = nil
	s.round = nil
	s.state = Idle
	s.logf("chat stopped")
}

// Running reports whether a chat is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv != nil
}

// State returns the state of the current round.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns the turns of the running chat.
func (s *Session) Conversation() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	return s.conv.Turns()
}

// Stats returns the current ranking.
func (s *Session) Stats() []StatRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot(s.configs.List(), s.tally)
}

// ResetVotes clears every tally.
func (s *Session) ResetVotes(ctx context.Context) error {
	s.mu.Lock()
	s.tally = Tally{}
	st := s.savedState()
	s.mu.Unlock()
	s.logf("votes reset")
	return s.save(ctx, st)
}

// CurrentRound returns the open round, if any.
func (s *Session) CurrentRound() (RoundView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.round.Open() {
		return RoundView{}, false
	}
	return s.view(s.round), true
}

// Send adds the user's message to the conversation and asks every enabled bot for a reply.
// A round with failed bots is still returned when the policy allows a partial vote; its
// view lists the failed bots. Otherwise it is discarded with a *DegradedRoundError.
func (s *Session) Send(ctx context.Context, message string) (RoundView, error) {
	message = strings.TrimSpace(message)

	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return RoundView{}, ErrNoChat
	}
	if s.state == Generating || s.round.Open() {
		s.mu.Unlock()
		return RoundView{}, ErrRoundInProgress
	}
	if message == "" {
		s.mu.Unlock()
		return RoundView{}, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	bots := s.configs.Enabled()
	if len(bots) == 0 {
		s.mu.Unlock()
		return RoundView{}, &ValidationError{Field: "bots", Reason: "no bots are enabled"}
	}
	conv := s.conv
	prefix := conv.Len()
	conv.Append(Turn{Role: RoleUser, Text: message})
	snapshot := &Conversation{Settings: conv.Settings, turns: conv.Turns()}
	s.state = Generating
	s.mu.Unlock()

	s.logf("generating %d replies", len(bots))
	candidates := s.gen.Generate(ctx, snapshot, bots)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != conv {
		return RoundView{}, ErrNoChat
	}
	return s.openRound(message, bots, candidates, prefix)
}

// Retry regenerates every reply of the open round for the same message.
func (s *Session) Retry(ctx context.Context, roundID string) (RoundView, error) {
	s.mu.Lock()
	round := s.round
	if !round.Open() || round.ID != roundID || s.state == Generating {
		s.mu.Unlock()
		return RoundView{}, &InvalidSelectionError{RoundID: roundID, Position: -1, Reason: "round is not open"}
	}
	bots := s.configs.Enabled()
	if len(bots) == 0 {
		s.mu.Unlock()
		return RoundView{}, &ValidationError{Field: "bots", Reason: "no bots are enabled"}
	}
	conv := s.conv
	round.consumed = true
	snapshot := &Conversation{Settings: conv.Settings, turns: conv.Turns()}
	s.state = Generating
	s.mu.Unlock()

	s.logf("retrying round %s", roundID)
	candidates := s.gen.Generate(ctx, snapshot, bots)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != conv {
		return RoundView{}, ErrNoChat
	}
	return s.openRound(round.Message, bots, candidates, round.prefixLen)
}

// Discard aborts the open round and removes its user message.
func (s *Session) Discard(roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.round.Open() || s.round.ID != roundID {
		return &InvalidSelectionError{RoundID: roundID, Position: -1, Reason: "round is not open"}
	}
	s.conv.Truncate(s.round.prefixLen)
	s.round.consumed = true
	s.state = Idle
	s.logf("round %s discarded", roundID)
	return nil
}

// Vote records the user's pick for the open round.
func (s *Session) Vote(ctx context.Context, roundID string, position int) (Turn, error) {
	s.mu.Lock()
	if s.conv == nil || s.round == nil || s.round.ID != roundID {
		s.mu.Unlock()
		return Turn{}, &InvalidSelectionError{RoundID: roundID, Position: position, Reason: "unknown or stale round"}
	}
	turn, err := NewVoteRecorder(s.conv, s.tally).RecordVote(s.round, position)
	if err != nil {
		s.mu.Unlock()
		return Turn{}, err
	}
	s.state = Recorded
	st := s.savedState()
	s.mu.Unlock()

	s.logf("round %s: vote recorded", roundID)
	return turn, s.save(ctx, st)
}

// openRound must be called with s.mu held.
func (s *Session) openRound(message string, bots []Bot, candidates []Candidate, prefix int) (RoundView, error) {
	replies, mapping := s.shuffler.Shuffle(candidates)
	round := NewRound(uuid.NewString(), message, replies, mapping)
	round.Total = len(bots)
	round.prefixLen = prefix

	var failures []error
	for _, c := range candidates {
		var be *BackendError
		if errors.As(c.Err, &be) {
			round.Failed = append(round.Failed, be.BotName)
			failures = append(failures, be)
		}
	}
	for _, err := range failures {
		s.logf("round %s: %v", round.ID, err)
	}

	if len(round.Failed) > 0 && (len(replies) == 0 || s.policy == AbortDegraded) {
		s.conv.Truncate(prefix)
		s.round = nil
		s.state = Idle
		view := s.view(round)
		view.State = Idle
		return view, &DegradedRoundError{Failed: round.Failed, Total: round.Total}
	}

	s.round = round
	s.state = AwaitingVote
	if len(round.Failed) > 0 {
		s.state = Degraded
	}
	return s.view(round), nil
}

func (s *Session) view(r *Round) RoundView {
	return RoundView{
		ID:      r.ID,
		State:   s.state,
		Message: r.Message,
		Replies: append([]Reply(nil), r.Replies...),
		Failed:  append([]string(nil), r.Failed...),
		Total:   r.Total,
	}
}
