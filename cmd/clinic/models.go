package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/config"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/models"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/openrouter"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List OpenRouter models bots can use",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
	cmd.Flags().Bool("all", false, "Include paid models")
	cmd.Flags().String("search", "", "Only show models whose id or name contains this text")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	registry := fetchModels(cmd.Context(), cfg)

	all, _ := cmd.Flags().GetBool("all")
	search, _ := cmd.Flags().GetString("search")
	list := registry.FreeModels()
	switch {
	case search != "":
		list = registry.Search(search)
		if !all {
			list = freeOnly(list)
		}
	case all:
		list = registry.Models()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, output.Bold("ID\tNAME\tCONTEXT\tFREE"))
	for _, m := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", m.ID, m.Name, m.ContextLength, models.IsFree(m))
	}
	return tw.Flush()
}

// fetchModels loads the live catalog, falling back to the built-in free
// models when the API can't be reached.
func fetchModels(ctx context.Context, cfg *config.Config) *models.Registry {
	if cfg.Backend != config.BackendOpenRouter {
		fmt.Println("Warning: model listing needs the openrouter backend. Showing defaults.")
		return models.NewRegistry(models.DefaultFreeModels())
	}
	client := openrouter.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client = openrouter.NewClientWithBaseURL(cfg.APIKey, cfg.BaseURL)
	}
	list, err := client.ListModels(ctx)
	if err != nil {
		fmt.Printf("Warning: could not fetch models: %v. Using defaults.\n", err)
		list = models.DefaultFreeModels()
	}
	registry := models.NewRegistry(list)
	if len(registry.FreeModels()) == 0 {
		registry = models.NewRegistry(append(list, models.DefaultFreeModels()...))
	}
	return registry
}

func freeOnly(list []openrouter.Model) []openrouter.Model {
	var out []openrouter.Model
	for _, m := range list {
		if models.IsFree(m) {
			out = append(out, m)
		}
	}
	return out
}
