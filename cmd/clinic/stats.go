package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how often each bot's reply was picked",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	cmd.Flags().Bool("reset", false, "Clear every vote before showing the ranking")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := a.session.ResetVotes(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Votes cleared.")
	}
	output.PrintStats(a.session.Stats())
	return nil
}
