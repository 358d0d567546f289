package clinic

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxBots caps how many bots a clinic holds.
const DefaultMaxBots = 10

// ConfigStore holds the ordered list of bot configurations.
type ConfigStore struct {
	bots    []Bot
	maxBots int
}

// NewConfigStore creates an empty store. maxBots <= 0 selects DefaultMaxBots.
func NewConfigStore(maxBots int) *ConfigStore {
	if maxBots <= 0 {
		maxBots = DefaultMaxBots
	}
	return &ConfigStore{maxBots: maxBots}
}

// Add validates b and appends it. An empty ID is filled with a fresh uuid.
func (s *ConfigStore) Add(b Bot) (Bot, error) {
	b = b.Clone()
	b.Name = strings.TrimSpace(b.Name)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if len(s.bots) >= s.maxBots {
		return Bot{}, &ValidationError{Field: "bots", Reason: fmt.Sprintf("at most %d bots can be configured", s.maxBots)}
	}
	if s.index(b.ID) >= 0 {
		return Bot{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate id %q", b.ID)}
	}
	if err := s.validate(b, -1); err != nil {
		return Bot{}, err
	}
	s.bots = append(s.bots, b)
	return b.Clone(), nil
}

// Remove deletes the bot with the given id.
func (s *ConfigStore) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	s.bots = append(s.bots[:i], s.bots[i+1:]...)
	return nil
}

// Get returns a copy of the bot with the given id.
func (s *ConfigStore) Get(id string) (Bot, error) {
	i := s.index(id)
	if i < 0 {
		return Bot{}, fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	return s.bots[i].Clone(), nil
}

// List returns copies of all bots in insertion order.
func (s *ConfigStore) List() []Bot {
	out := make([]Bot, len(s.bots))
	for i, b := range s.bots {
		out[i] = b.Clone()
	}
	return out
}

// Enabled returns copies of the enabled bots in insertion order.
func (s *ConfigStore) Enabled() []Bot {
	var out []Bot
	for _, b := range s.bots {
		if b.Enabled {
			out = append(out, b.Clone())
		}
	}
	return out
}

// Len returns the number of configured bots.
func (s *ConfigStore) Len() int { return len(s.bots) }

// Update applies u to the bot with the given id, keeping its position.
func (s *ConfigStore) Update(id string, u BotUpdate) (Bot, error) {
	i := s.index(id)
	if i < 0 {
		return Bot{}, fmt.Errorf("%w: %s", ErrBotNotFound, id)
	}
	b := s.bots[i].Clone()
	if u.Name != nil {
		b.Name = strings.TrimSpace(*u.Name)
	}
	if u.Context != nil {
		b.Context = *u.Context
	}
	if u.Model != nil {
		b.Model = *u.Model
	}
	if u.Preset != nil {
		b.Preset = *u.Preset
	}
	if u.Parameters != nil {
		b.Parameters = *u.Parameters
	}
	if u.Enabled != nil {
		b.Enabled = *u.Enabled
	}
	b = b.Clone()
	if err := s.validate(b, i); err != nil {
		return Bot{}, err
	}
	s.bots[i] = b
	return b.Clone(), nil
}

// replace swaps the whole list, used when restoring persisted state.
func (s *ConfigStore) replace(bots []Bot) error {
	fresh := NewConfigStore(max(s.maxBots, len(bots)))
	for _, b := range bots {
		if _, err := fresh.Add(b); err != nil {
			return err
		}
	}
	s.bots = fresh.bots
	return nil
}

func (s *ConfigStore) validate(b Bot, self int) error {
	if b.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	for i, other := range s.bots {
		if i != self && strings.EqualFold(other.Name, b.Name) {
			return &ValidationError{Field: "name", Reason: fmt.Sprintf("duplicate name %q", b.Name)}
		}
	}
	for k := range b.Parameters {
		if strings.TrimSpace(k) == "" {
			return &ValidationError{Field: "parameters", Reason: "parameter names must not be empty"}
		}
	}
	return nil
}

func (s *ConfigStore) index(id string) int {
	for i, b := range s.bots {
		if b.ID == id {
			return i
		}
	}
	return -1
}
