package clinic

import "slices"

// Conversation is the turn history shared by every bot.
type Conversation struct {
	Settings Settings
	turns    []Turn
}

// NewConversation starts a conversation with the greeting as the first bot turn.
func NewConversation(settings Settings) *Conversation {
	c := &Conversation{Settings: settings}
	if settings.Greeting != "" {
		c.turns = append(c.turns, Turn{Role: RoleAssistant, Text: settings.Greeting})
	}
	return c
}

// Append adds a turn at the end of the conversation.
func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

// Truncate drops every turn after the first n.
func (c *Conversation) Truncate(n int) {
	if n < len(c.turns) {
		c.turns = c.turns[:n]
	}
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Turns returns a copy of the turns.
func (c *Conversation) Turns() []Turn { return slices.Clone(c.turns) }
