package clinic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Generator asks the backend for one reply per bot against the same conversation.
type Generator struct {
	backend Backend
	// Parallelism bounds concurrent backend calls; values <= 1 run sequentially.
	Parallelism int
	// Timeout bounds each backend call; zero means no per-call limit.
	Timeout time.Duration
	// DefaultModel is used for bots that don't name a model.
	DefaultModel string
	// OnCandidate is called as each candidate completes.
	OnCandidate func(Candidate)

	mu sync.Mutex
}

// NewGenerator creates a sequential Generator.
func NewGenerator(backend Backend) *Generator {
	return &Generator{backend: backend, Parallelism: 1}
}

// Generate returns one candidate per bot, in bot order. A failed call is recorded
// on its candidate as a *BackendError and does not stop the others.
func (g *Generator) Generate(ctx context.Context, conv *Conversation, bots []Bot) []Candidate {
	turns := conv.Turns()
	candidates := make([]Candidate, len(bots))

	if g.Parallelism <= 1 {
		for i, bot := range bots {
			candidates[i] = g.generateOne(ctx, conv.Settings, turns, bot)
			g.notify(candidates[i])
		}
		return candidates
	}

	var eg errgroup.Group
	eg.SetLimit(g.Parallelism)
	for i, bot := range bots {
		eg.Go(func() error {
			candidates[i] = g.generateOne(ctx, conv.Settings, turns, bot)
			g.notify(candidates[i])
			return nil
		})
	}
	_ = eg.Wait()
	return candidates
}

func (g *Generator) generateOne(ctx context.Context, settings Settings, turns []Turn, bot Bot) Candidate {
	if err := ctx.Err(); err != nil {
		return Candidate{BotID: bot.ID, Err: &BackendError{BotID: bot.ID, BotName: bot.Name, Err: err}}
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	model := bot.Model
	if model == "" {
		model = g.DefaultModel
	}
	req := Request{
		Model:      model,
		Context:    expandContext(bot.Context, settings),
		Parameters: bot.Clone().Parameters,
		Messages:   BuildMessages(bot, settings, turns),
	}
	text, err := g.backend.Generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		return Candidate{BotID: bot.ID, Err: &BackendError{BotID: bot.ID, BotName: bot.Name, Err: err}}
	}
	return Candidate{BotID: bot.ID, Text: strings.TrimSpace(text)}
}

func (g *Generator) notify(c Candidate) {
	if g.OnCandidate == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OnCandidate(c)
}
