// Package presets holds named sets of generation parameters that bots can
// be seeded from.
package presets

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPreset is returned for a preset name that is not registered.
var ErrUnknownPreset = errors.New("presets: unknown preset")

// Preset is a named parameter set.
type Preset struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

var builtin = []Preset{
	{Name: "simple-1", Parameters: map[string]any{
		"temperature": 0.7, "top_p": 0.9, "top_k": 20, "repetition_penalty": 1.15,
	}},
	{Name: "Divine Intellect", Parameters: map[string]any{
		"temperature": 1.31, "top_p": 0.14, "top_k": 49, "repetition_penalty": 1.17,
	}},
	{Name: "LLaMA-Precise", Parameters: map[string]any{
		"temperature": 0.7, "top_p": 0.1, "top_k": 40, "repetition_penalty": 1.18,
	}},
	{Name: "Big O", Parameters: map[string]any{
		"temperature": 0.87, "top_p": 0.99, "top_k": 85, "repetition_penalty": 1.01,
	}},
	{Name: "Debug-deterministic", Parameters: map[string]any{
		"temperature": 0.0,
	}},
	{Name: "Null preset", Parameters: map[string]any{}},
}

// Registry maps preset names to parameters.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewRegistry returns a registry holding the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtin))}
	for _, p := range builtin {
		r.presets[p.Name] = clonePreset(p)
	}
	return r
}

func clonePreset(p Preset) Preset {
	p.Parameters = maps.Clone(p.Parameters)
	if p.Parameters == nil {
		p.Parameters = map[string]any{}
	}
	return p
}

// Add registers or replaces a preset.
func (r *Registry) Add(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return &clinic.ValidationError{Field: "preset", Reason: "name must not be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = clonePreset(p)
	return nil
}

// Get returns a copy of the named preset.
func (r *Registry) Get(name string) (Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return clonePreset(p), nil
}

// Names returns the registered preset names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.presets))
}

// LoadDir registers every *.yaml and *.yml file in dir as a preset named after
// the file. Files override built-ins of the same name. It returns the number
// of presets loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("presets: reading %s: %w", dir, err)
	}
	loaded := 0
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		if err := r.Add(p); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// LoadFile reads a single preset. The file is a flat mapping of parameter
// names to values.
func LoadFile(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("presets: reading %s: %w", path, err)
	}
	params := map[string]any{}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Preset{}, fmt.Errorf("presets: parsing %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Preset{Name: name, Parameters: params}, nil
}

// Apply seeds b's parameters from its preset. Parameters already set on the
// bot win over the preset's.
func (r *Registry) Apply(b *clinic.Bot) error {
	if b.Preset == "" {
		return nil
	}
	p, err := r.Get(b.Preset)
	if err != nil {
		return &clinic.ValidationError{Field: "preset", Reason: err.Error()}
	}
	params := p.Parameters
	maps.Copy(params, b.Parameters)
	b.Parameters = params
	return nil
}
