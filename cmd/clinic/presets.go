package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/config"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/presets"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the generation presets bots can start from",
		Args:  cobra.NoArgs,
		RunE:  runPresets,
	}
}

func runPresets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	reg := presets.NewRegistry()
	if cfg.PresetsDir != "" {
		if _, err := reg.LoadDir(cfg.PresetsDir); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, output.Bold("NAME\tPARAMETERS"))
	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		if err != nil {
			return err
		}
		params, _ := json.Marshal(p.Parameters)
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, params)
	}
	return tw.Flush()
}
