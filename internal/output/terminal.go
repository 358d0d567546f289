package output

import (
	"fmt"
	"math"
	"strings"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	AnsiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

// Colorize wraps s with an ANSI color code and reset.
func Colorize(color, s string) string { return color + s + ansiReset }

// Bold wraps s with ANSI bold and reset.
func Bold(s string) string { return ansiBold + s + ansiReset }

// PrintTurn prints one conversation turn under the shared speaker names.
func PrintTurn(settings clinic.Settings, turn clinic.Turn) {
	name, color := settings.BotName, ansiCyan
	if turn.Role == clinic.RoleUser {
		name, color = settings.UserName, ansiYellow
	}
	fmt.Printf("%s: %s\n", Colorize(ansiBold+color, name), turn.Text)
}

// PrintRound prints the anonymized replies of a round, numbered from 1.
func PrintRound(view clinic.RoundView) {
	fmt.Printf("\n%s\n", Colorize(ansiYellow, fmt.Sprintf("[Round %s]", shortID(view.ID))))
	for _, r := range view.Replies {
		fmt.Printf("%s %s\n\n", Bold(fmt.Sprintf("(%d)", r.Position+1)), r.Text)
	}
	if view.Degraded() {
		PrintDegraded(view.Failed, view.Total)
	}
}

// PrintDegraded warns that some bots failed to reply.
func PrintDegraded(failed []string, total int) {
	fmt.Printf("%s %s\n", Colorize(ansiBold+ansiRed, "!"),
		Colorize(ansiRed, fmt.Sprintf("%d of %d bots failed to reply: %s", len(failed), total, strings.Join(failed, ", "))))
}

// PrintProgress rewrites one status line with how many replies are in.
// It ends the line once every reply arrived.
func PrintProgress(done, total int) {
	fmt.Printf("\r%s", Colorize(ansiCyan, fmt.Sprintf("%d/%d replies in", done, total)))
	if done >= total {
		fmt.Println()
	}
}

// PrintError prints err in red.
func PrintError(err error) {
	fmt.Println(Colorize(ansiRed, err.Error()))
}

// PrintPhase prints a banner for a round state change.
func PrintPhase(state clinic.State) {
	name := strings.ReplaceAll(state.String(), "_", " ")
	color := ansiCyan
	switch state {
	case clinic.Degraded:
		color = ansiRed
	case clinic.Recorded:
		color = ansiGreen
	}
	fmt.Printf("\n%s\n\n", Colorize(ansiBold+color, "=== "+name+" ==="))
}

// PrintStats prints the ranking with rounded percentages. The leader is
// highlighted when it has at least one vote.
func PrintStats(rows []clinic.StatRow) {
	if len(rows) == 0 {
		fmt.Println("No bots configured.")
		return
	}
	width := 4
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	fmt.Printf("%s\n", Bold(fmt.Sprintf("%-4s %-*s %6s %6s", "#", width, "Bot", "Votes", "%")))
	for i, r := range rows {
		line := fmt.Sprintf("%-4d %-*s %6d %5d%%", i+1, width, r.Name, r.Votes, RoundPercent(r.Percentage))
		if i == 0 && r.Votes > 0 {
			line = Colorize(ansiGreen, line)
		}
		fmt.Println(line)
	}
}

// RoundPercent rounds a percentage for display.
func RoundPercent(p float64) int { return int(math.Round(p)) }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
