package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/config"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/models"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/openaicompat"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/openrouter"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/presets"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/state"
)

// seedBots is how many enabled bots a fresh clinic starts with.
const seedBots = 3

// applyFlags loads the .env file, then lets explicitly set flags override
// the environment so config.Load sees one source of truth.
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	for name, env := range flagEnv {
		f := flags.Lookup(name)
		if f != nil && f.Changed {
			os.Setenv(env, f.Value.String())
		}
	}
	if key, _ := flags.GetString("api-key"); key != "" {
		if os.Getenv("CLINIC_BACKEND") == config.BackendOpenAI {
			os.Setenv("OPENAI_API_KEY", key)
		} else {
			os.Setenv("OPENROUTER_API_KEY", key)
		}
	}
	return nil
}

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	store   clinic.Store
	session *clinic.Session
	presets *presets.Registry
	models  *models.Registry
	gen     *clinic.Generator
	close   func() error
}

// newApp builds the clinic from configuration. Without a backend the
// session can still manage bots and votes but every generation fails.
func newApp(ctx context.Context, needBackend bool, opts ...clinic.Option) (*app, error) {
	load := config.LoadLocal
	if needBackend {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, close: func() error { return nil }}
	if cfg.UseRedis() {
		rs, err := state.NewRedisStore(ctx, state.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.store, a.close = rs, rs.Close
	} else {
		a.store = state.NewFileStore(cfg.StatePath)
	}

	a.presets = presets.NewRegistry()
	if cfg.PresetsDir != "" {
		n, err := a.presets.LoadDir(cfg.PresetsDir)
		if err != nil {
			a.close()
			return nil, err
		}
		log.Printf("[clinic] loaded %d presets from %s", n, cfg.PresetsDir)
	}

	a.models = models.NewRegistry(models.DefaultFreeModels())
	gen := clinic.NewGenerator(a.backend())
	gen.Parallelism = cfg.Parallel
	gen.Timeout = cfg.Timeout
	gen.DefaultModel = cfg.Model
	if gen.DefaultModel == "" && cfg.Backend == config.BackendOpenRouter {
		gen.DefaultModel = a.models.Default()
	}

	opts = append([]clinic.Option{
		clinic.WithMaxBots(cfg.MaxBots),
		clinic.WithDegradedPolicy(cfg.DegradedPolicy),
	}, opts...)
	a.gen = gen
	a.session = clinic.NewSession(a.store, gen, opts...)
	if err := a.session.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) backend() clinic.Backend {
	switch a.cfg.Backend {
	case config.BackendOpenAI:
		return openaicompat.New(openaicompat.Settings{
			APIKey:     a.cfg.APIKey,
			BaseURL:    a.cfg.BaseURL,
			MaxRetries: a.cfg.MaxRetries,
		})
	default:
		if a.cfg.BaseURL != "" {
			return openrouter.NewClientWithBaseURL(a.cfg.APIKey, a.cfg.BaseURL)
		}
		return openrouter.NewClient(a.cfg.APIKey)
	}
}

// seed gives a clinic that has never saved state a few enabled bots to
// compare. Only the commands that run chats call it, so an emptied bot list
// stays empty.
func (a *app) seed(ctx context.Context) error {
	if !a.session.Fresh() {
		return nil
	}
	bots := make([]clinic.Bot, seedBots)
	for i := range bots {
		bots[i] = clinic.Bot{
			Name:    fmt.Sprintf("Bot%d", i+1),
			Context: clinic.DefaultContext,
			Model:   a.cfg.Model,
			Enabled: true,
		}
	}
	if a.cfg.Backend == config.BackendOpenRouter {
		bots = a.models.AssignModels(bots)
	}
	for _, b := range bots {
		if _, err := a.session.AddBot(ctx, b); err != nil {
			return fmt.Errorf("seeding bots: %w", err)
		}
	}
	return nil
}
