package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLINIC_BACKEND",
		"OPENROUTER_API_KEY",
		"OPENAI_API_KEY",
		"CLINIC_BASE_URL",
		"CLINIC_MODEL",
		"CLINIC_STATE",
		"CLINIC_REDIS_ADDR",
		"CLINIC_REDIS_PASSWORD",
		"CLINIC_REDIS_DB",
		"CLINIC_LISTEN",
		"CLINIC_MAX_BOTS",
		"CLINIC_PARALLEL",
		"CLINIC_TIMEOUT",
		"CLINIC_MAX_RETRIES",
		"CLINIC_DEGRADED_POLICY",
		"CLINIC_PRESETS_DIR",
		"CLINIC_OUTPUT_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when OPENROUTER_API_KEY is missing")
	}
}

func TestLoadLocal_NoAPIKeyNeeded(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadLocal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StatePath != "clinic_state.json" {
		t.Errorf("StatePath = %q, want %q", cfg.StatePath, "clinic_state.json")
	}
}

func TestLoadLocal_StillValidates(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLINIC_PARALLEL", "-1")
	if _, err := LoadLocal(); err == nil {
		t.Fatal("expected error for negative parallelism")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendOpenRouter {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendOpenRouter)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-key")
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "output")
	}
	if cfg.StatePath != "clinic_state.json" {
		t.Errorf("StatePath = %q, want %q", cfg.StatePath, "clinic_state.json")
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8080")
	}
	if cfg.MaxBots != clinic.DefaultMaxBots {
		t.Errorf("MaxBots = %d, want %d", cfg.MaxBots, clinic.DefaultMaxBots)
	}
	if cfg.Parallel != 1 {
		t.Errorf("Parallel = %d, want %d", cfg.Parallel, 1)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %s, want %s", cfg.Timeout, 2*time.Minute)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.DegradedPolicy != clinic.AllowPartial {
		t.Errorf("DegradedPolicy = %q, want %q", cfg.DegradedPolicy, clinic.AllowPartial)
	}
	if cfg.UseRedis() {
		t.Error("expected file state by default")
	}
}

func TestLoad_CustomEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "my-key")
	t.Setenv("CLINIC_OUTPUT_DIR", "results")
	t.Setenv("CLINIC_MAX_BOTS", "5")
	t.Setenv("CLINIC_PARALLEL", "3")
	t.Setenv("CLINIC_TIMEOUT", "45s")
	t.Setenv("CLINIC_MAX_RETRIES", "0")
	t.Setenv("CLINIC_DEGRADED_POLICY", "abort")
	t.Setenv("CLINIC_REDIS_ADDR", "localhost:6379")
	t.Setenv("CLINIC_REDIS_DB", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "results" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "results")
	}
	if cfg.MaxBots != 5 {
		t.Errorf("MaxBots = %d, want %d", cfg.MaxBots, 5)
	}
	if cfg.Parallel != 3 {
		t.Errorf("Parallel = %d, want %d", cfg.Parallel, 3)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want %s", cfg.Timeout, 45*time.Second)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.DegradedPolicy != clinic.AbortDegraded {
		t.Errorf("DegradedPolicy = %q, want %q", cfg.DegradedPolicy, clinic.AbortDegraded)
	}
	if !cfg.UseRedis() || cfg.RedisDB != 2 {
		t.Errorf("expected redis db 2, got addr=%q db=%d", cfg.RedisAddr, cfg.RedisDB)
	}
}

func TestLoad_OpenAIBackendWithLocalServer(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLINIC_BACKEND", "openai")
	t.Setenv("CLINIC_BASE_URL", "http://localhost:5000/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendOpenAI || cfg.APIKey != "" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_OpenAIBackendNeedsKeyOrURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLINIC_BACKEND", "openai")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without OPENAI_API_KEY or CLINIC_BASE_URL")
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLINIC_BACKEND", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"CLINIC_MAX_BOTS":        "0",
		"CLINIC_PARALLEL":        "0",
		"CLINIC_TIMEOUT":         "soon",
		"CLINIC_DEGRADED_POLICY": "ignore",
		"CLINIC_REDIS_DB":        "notanumber",
		"CLINIC_MAX_RETRIES":     "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENROUTER_API_KEY", "test-key")
			t.Setenv(key, val)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestLoadDotEnv_SetsVarsFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("OPENROUTER_API_KEY=from-dotenv\nCLINIC_OUTPUT_DIR=dotenv-output\n"), 0644)

	err := LoadDotEnv(envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "from-dotenv")
	}
	if cfg.OutputDir != "dotenv-output" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "dotenv-output")
	}
}

func TestLoadDotEnv_EnvVarsTakePrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "from-env")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("OPENROUTER_API_KEY=from-dotenv\n"), 0644)

	err := LoadDotEnv(envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want %q (env var should take precedence)", cfg.APIKey, "from-env")
	}
}

func TestLoadDotEnv_MissingFileIsNotError(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Fatalf("missing .env file should not be an error, got: %v", err)
	}
}
