package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the bots, settings and ranking to the output directory",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().String("name", "ranking", "Output folder name")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	name, _ := cmd.Flags().GetString("name")
	outDir, err := output.CreateOutputDir(a.cfg.OutputDir, output.GenerateSlug(name))
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	w := output.NewWriter(outDir)
	t := output.NewTranscript(name, a.session.Settings(), nil, a.session.Bots(), a.session.Stats())
	if err := w.WriteJSON(t); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	if err := w.WriteMarkdown(t); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}
	fmt.Printf("Exported to: %s\n", outDir)
	return nil
}
