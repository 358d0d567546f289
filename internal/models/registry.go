// Package models picks generation models for bots from OpenRouter's catalog.
package models

import (
	"strings"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/openrouter"
)

// Registry holds a model catalog and the subset that is free to use.
type Registry struct {
	all  []openrouter.Model
	free []openrouter.Model
}

// IsFree reports whether both prompt and completion pricing are zero.
// Models with nil Pricing are not free.
func IsFree(m openrouter.Model) bool {
	return m.Pricing != nil && m.Pricing.Prompt == "0" && m.Pricing.Completion == "0"
}

// NewRegistry creates a registry over models.
func NewRegistry(models []openrouter.Model) *Registry {
	r := &Registry{all: models}
	for _, m := range models {
		if IsFree(m) {
			r.free = append(r.free, m)
		}
	}
	return r
}

// Models returns the whole catalog.
func (r *Registry) Models() []openrouter.Model { return r.all }

// FreeModels returns all free models in the registry.
func (r *Registry) FreeModels() []openrouter.Model { return r.free }

// Search returns models whose id or name contains query, case-insensitively.
func (r *Registry) Search(query string) []openrouter.Model {
	q := strings.ToLower(query)
	var out []openrouter.Model
	for _, m := range r.all {
		if strings.Contains(strings.ToLower(m.ID), q) || strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}

// SelectModels returns n models from the free list, cycling if n > available.
func (r *Registry) SelectModels(n int) []openrouter.Model {
	if len(r.free) == 0 || n <= 0 {
		return nil
	}
	selected := make([]openrouter.Model, n)
	for i := range n {
		selected[i] = r.free[i%len(r.free)]
	}
	return selected
}

// Default returns the model used for bots that name none: the first free
// model, or the first of DefaultFreeModels when the catalog has none.
func (r *Registry) Default() string {
	if len(r.free) > 0 {
		return r.free[0].ID
	}
	return DefaultFreeModels()[0].ID
}

// AssignModels gives every bot without a model one of the free models,
// spreading them so bots differ where possible. It returns the updated bots.
func (r *Registry) AssignModels(bots []clinic.Bot) []clinic.Bot {
	missing := 0
	for _, b := range bots {
		if b.Model == "" {
			missing++
		}
	}
	picks := r.SelectModels(missing)
	out := make([]clinic.Bot, len(bots))
	next := 0
	for i, b := range bots {
		out[i] = b.Clone()
		if b.Model == "" && next < len(picks) {
			out[i].Model = picks[next].ID
			next++
		}
	}
	return out
}

// DefaultFreeModels returns a hardcoded fallback list of known free models.
func DefaultFreeModels() []openrouter.Model {
	free := &openrouter.Pricing{Prompt: "0", Completion: "0"}
	return []openrouter.Model{
		{ID: "qwen/qwen3-235b-a22b:free", Name: "Qwen3 235B A22B", Pricing: free},
		{ID: "google/gemma-3n-e2b-it:free", Name: "Gemma 3n 2B", Pricing: free},
		{ID: "nvidia/nemotron-nano-9b-v2:free", Name: "Nemotron Nano 9B V2", Pricing: free},
		{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Llama 3.3 70B Instruct", Pricing: free},
		{ID: "openai/gpt-oss-120b:free", Name: "GPT OSS 120B", Pricing: free},
	}
}
