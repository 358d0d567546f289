package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagEnv maps persistent flags to the environment variables they override.
var flagEnv = map[string]string{
	"backend":         "CLINIC_BACKEND",
	"base-url":        "CLINIC_BASE_URL",
	"model":           "CLINIC_MODEL",
	"state":           "CLINIC_STATE",
	"redis-addr":      "CLINIC_REDIS_ADDR",
	"output-dir":      "CLINIC_OUTPUT_DIR",
	"presets-dir":     "CLINIC_PRESETS_DIR",
	"parallel":        "CLINIC_PARALLEL",
	"timeout":         "CLINIC_TIMEOUT",
	"max-retries":     "CLINIC_MAX_RETRIES",
	"degraded-policy": "CLINIC_DEGRADED_POLICY",
	"max-bots":        "CLINIC_MAX_BOTS",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clinic",
		Short: "Blind A/B/n comparison of chatbot configurations",
		Long: "Chatbot Clinic sends every message to several bot configurations, shows their replies " +
			"in random order without saying which bot wrote which, and counts the votes for the reply you pick.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyFlags(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("env-file", ".env", "File with KEY=value lines loaded into the environment")
	pf.String("api-key", "", "API key for the backend (overrides OPENROUTER_API_KEY / OPENAI_API_KEY)")
	pf.String("backend", "openrouter", "Generation backend: openrouter or openai")
	pf.String("base-url", "", "Base URL of an OpenAI-compatible server")
	pf.String("model", "", "Model used by bots that name none")
	pf.String("state", "clinic_state.json", "File holding bots, votes and settings")
	pf.String("redis-addr", "", "Keep state in Redis at this address instead of a file")
	pf.String("output-dir", "output", "Output directory for exported sessions")
	pf.String("presets-dir", "", "Directory of *.yaml generation presets")
	pf.Int("parallel", 1, "How many bots generate at the same time")
	pf.Duration("timeout", 2*time.Minute, "Per-bot generation timeout (0 disables it)")
	pf.Int("max-retries", config.DefaultMaxRetries, "Retries of a failed generation call on the openai backend")
	pf.String("degraded-policy", "allow-partial", "What to do when some bots fail: allow-partial or abort")
	pf.Int("max-bots", 10, "Maximum number of configured bots")

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newBotsCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newPresetsCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newExportCmd())
	return root
}
