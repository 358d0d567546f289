package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

func newBotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Manage the bot configurations under comparison",
	}
	cmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List bots", Args: cobra.NoArgs, RunE: runBotsList},
		newBotsAddCmd(),
		newBotsUpdateCmd(),
		&cobra.Command{Use: "remove <id>", Short: "Remove a bot and its votes", Args: cobra.ExactArgs(1), RunE: runBotsRemove},
		&cobra.Command{Use: "enable <id>", Short: "Include a bot in rounds", Args: cobra.ExactArgs(1), RunE: setEnabled(true)},
		&cobra.Command{Use: "disable <id>", Short: "Leave a bot out of rounds", Args: cobra.ExactArgs(1), RunE: setEnabled(false)},
	)
	return cmd
}

func botFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("name", "", "Bot name")
	f.String("context", "", "Character text; {{user}} and {{char}} are replaced by the shared names")
	f.String("bot-model", "", "Model for this bot")
	f.String("preset", "", "Generation preset to seed parameters from")
	f.StringToString("param", nil, "Generation parameter as key=value (repeatable)")
	f.Bool("enabled", true, "Include the bot in rounds")
}

func newBotsAddCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "add", Short: "Add a bot", Args: cobra.NoArgs, RunE: runBotsAdd}
	botFlags(cmd)
	cmd.MarkFlagRequired("name")
	return cmd
}

func newBotsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "update <id>", Short: "Change a bot", Args: cobra.ExactArgs(1), RunE: runBotsUpdate}
	botFlags(cmd)
	return cmd
}

func runBotsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, output.Bold("ID\tNAME\tENABLED\tMODEL\tPRESET\tPARAMETERS"))
	for _, b := range a.session.Bots() {
		params, _ := json.Marshal(b.Parameters)
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\n", b.ID, b.Name, b.Enabled, b.Model, b.Preset, params)
	}
	return tw.Flush()
}

// parseParams turns key=value strings into typed parameters; values that
// parse as JSON (numbers, booleans, lists) keep their type.
func parseParams(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			out[k] = parsed
		} else {
			out[k] = v
		}
	}
	return out
}

func runBotsAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	f := cmd.Flags()
	b := clinic.Bot{Context: clinic.DefaultContext}
	b.Name, _ = f.GetString("name")
	if c, _ := f.GetString("context"); c != "" {
		b.Context = c
	}
	b.Model, _ = f.GetString("bot-model")
	b.Preset, _ = f.GetString("preset")
	b.Enabled, _ = f.GetBool("enabled")
	raw, _ := f.GetStringToString("param")
	b.Parameters = parseParams(raw)
	if err := a.presets.Apply(&b); err != nil {
		return err
	}

	added, err := a.session.AddBot(cmd.Context(), b)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", output.Bold(added.Name), added.ID)
	return nil
}

func runBotsUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	f := cmd.Flags()
	var u clinic.BotUpdate
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	u.Name = str("name")
	u.Context = str("context")
	u.Model = str("bot-model")
	u.Preset = str("preset")
	if f.Changed("enabled") {
		v, _ := f.GetBool("enabled")
		u.Enabled = &v
	}
	if f.Changed("param") || (u.Preset != nil && *u.Preset != "") {
		raw, _ := f.GetStringToString("param")
		b := clinic.Bot{Parameters: parseParams(raw)}
		if u.Preset != nil {
			b.Preset = *u.Preset
		}
		if err := a.presets.Apply(&b); err != nil {
			return err
		}
		u.Parameters = &b.Parameters
	}

	updated, err := a.session.UpdateBot(cmd.Context(), args[0], u)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (%s)\n", output.Bold(updated.Name), updated.ID)
	return nil
}

func runBotsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.session.RemoveBot(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func setEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		b, err := a.session.UpdateBot(cmd.Context(), args[0], clinic.BotUpdate{Enabled: &enabled})
		if err != nil {
			return err
		}
		verb := "Disabled"
		if enabled {
			verb = "Enabled"
		}
		fmt.Printf("%s %s (%s)\n", verb, output.Bold(b.Name), b.ID)
		return nil
	}
}
