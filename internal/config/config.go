package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

// Generation backends.
const (
	BackendOpenRouter = "openrouter"
	BackendOpenAI     = "openai"
)

// DefaultMaxRetries matches the retry budget of the OpenRouter client.
const DefaultMaxRetries = 3

type Config struct {
	Backend        string
	APIKey         string
	BaseURL        string
	Model          string
	StatePath      string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	Listen         string
	MaxBots        int
	Parallel       int
	Timeout        time.Duration
	MaxRetries     int
	DegradedPolicy clinic.DegradedPolicy
	PresetsDir     string
	OutputDir      string
}

// UseRedis reports whether state is kept in Redis instead of a file.
func (c *Config) UseRedis() bool { return c.RedisAddr != "" }

// Load reads the configuration for commands that talk to a generation backend.
func Load() (*Config, error) { return load(true) }

// LoadLocal reads the configuration for commands that only touch saved state,
// so no API key is required.
func LoadLocal() (*Config, error) { return load(false) }

func load(needBackend bool) (*Config, error) {
	cfg := &Config{
		Backend:       envString("CLINIC_BACKEND", BackendOpenRouter),
		BaseURL:       os.Getenv("CLINIC_BASE_URL"),
		Model:         os.Getenv("CLINIC_MODEL"),
		StatePath:     envString("CLINIC_STATE", "clinic_state.json"),
		RedisAddr:     os.Getenv("CLINIC_REDIS_ADDR"),
		RedisPassword: os.Getenv("CLINIC_REDIS_PASSWORD"),
		Listen:        envString("CLINIC_LISTEN", ":8080"),
		PresetsDir:    os.Getenv("CLINIC_PRESETS_DIR"),
		OutputDir:     envString("CLINIC_OUTPUT_DIR", "output"),
	}

	switch cfg.Backend {
	case BackendOpenRouter:
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if cfg.APIKey == "" && needBackend {
			return nil, fmt.Errorf("config: OPENROUTER_API_KEY is required")
		}
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" && cfg.BaseURL == "" && needBackend {
			return nil, fmt.Errorf("config: OPENAI_API_KEY or CLINIC_BASE_URL is required for the openai backend")
		}
	default:
		return nil, fmt.Errorf("config: CLINIC_BACKEND must be %q or %q, got %q", BackendOpenRouter, BackendOpenAI, cfg.Backend)
	}

	var err error
	if cfg.RedisDB, err = envInt("CLINIC_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MaxBots, err = envInt("CLINIC_MAX_BOTS", clinic.DefaultMaxBots); err != nil {
		return nil, err
	}
	if cfg.Parallel, err = envInt("CLINIC_PARALLEL", 1); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = envDuration("CLINIC_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = envInt("CLINIC_MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.DegradedPolicy, err = clinic.ParseDegradedPolicy(os.Getenv("CLINIC_DEGRADED_POLICY")); err != nil {
		return nil, fmt.Errorf("config: CLINIC_DEGRADED_POLICY: %w", err)
	}

	if cfg.MaxBots < 1 {
		return nil, fmt.Errorf("config: MaxBots must be >= 1, got %d", cfg.MaxBots)
	}
	if cfg.Parallel < 1 {
		return nil, fmt.Errorf("config: Parallel must be >= 1, got %d", cfg.Parallel)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("config: Timeout must not be negative, got %s", cfg.Timeout)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("config: MaxRetries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.RedisDB < 0 {
		return nil, fmt.Errorf("config: RedisDB must be >= 0, got %d", cfg.RedisDB)
	}

	return cfg, nil
}

// LoadDotEnv reads KEY=value pairs from path into the environment. Variables
// already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, s, err)
	}
	return v, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q: %w", key, s, err)
	}
	return v, nil
}
