package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

const maxSlugLen = 50

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug turns a title into a lowercase, dash-separated directory name.
func GenerateSlug(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "session"
	}
	return slug
}

// CreateOutputDir creates base/<slug>-<timestamp> and returns its path.
func CreateOutputDir(base, slug string) (string, error) {
	dir := filepath.Join(base, fmt.Sprintf("%s-%s", slug, time.Now().Format("20060102-150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("output: creating %s: %w", dir, err)
	}
	return dir, nil
}

// TranscriptTurn is a conversation turn with the winning bot's name resolved.
type TranscriptTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Bot  string `json:"bot,omitempty"`
}

// Transcript is an exported chat together with the ranking at export time.
type Transcript struct {
	Title    string           `json:"title"`
	Exported time.Time        `json:"exported"`
	Settings clinic.Settings  `json:"settings"`
	Turns    []TranscriptTurn `json:"turns"`
	Stats    []clinic.StatRow `json:"stats"`
}

// NewTranscript resolves the bot of every voted turn by id. Turns of bots
// removed since keep their text without a name.
func NewTranscript(title string, settings clinic.Settings, turns []clinic.Turn, bots []clinic.Bot, stats []clinic.StatRow) *Transcript {
	names := make(map[string]string, len(bots))
	for _, b := range bots {
		names[b.ID] = b.Name
	}
	t := &Transcript{Title: title, Exported: time.Now(), Settings: settings, Stats: stats}
	for _, turn := range turns {
		t.Turns = append(t.Turns, TranscriptTurn{Role: turn.Role, Text: turn.Text, Bot: names[turn.BotID]})
	}
	return t
}

// Writer writes session artifacts into one directory.
type Writer struct {
	dir string

	mu      sync.Mutex
	entries []string
}

// NewWriter returns a writer for dir. The directory must exist.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteJSON writes transcript.json.
func (w *Writer) WriteJSON(t *Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("output: encoding transcript: %w", err)
	}
	return w.write("transcript.json", data)
}

// WriteMarkdown writes report.md with the conversation and the ranking.
func (w *Writer) WriteMarkdown(t *Transcript) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", t.Title)
	fmt.Fprintf(&sb, "_Exported %s_\n\n", t.Exported.Format(time.RFC1123))

	if len(t.Turns) > 0 {
		sb.WriteString("## Conversation\n\n")
	}
	round := 0
	for _, turn := range t.Turns {
		if turn.Role == clinic.RoleUser {
			round++
			fmt.Fprintf(&sb, "### Round %d\n\n**%s:** %s\n\n", round, t.Settings.UserName, turn.Text)
			continue
		}
		speaker := t.Settings.BotName
		if turn.Bot != "" {
			speaker = fmt.Sprintf("%s (%s)", t.Settings.BotName, turn.Bot)
		}
		fmt.Fprintf(&sb, "**%s:** %s\n\n", speaker, turn.Text)
	}

	sb.WriteString("## Ranking\n\n")
	sb.WriteString(StatsMarkdown(t.Stats))
	return w.write("report.md", []byte(sb.String()))
}

// StatsMarkdown renders the ranking as a markdown table.
func StatsMarkdown(rows []clinic.StatRow) string {
	if len(rows) == 0 {
		return "No bots configured.\n"
	}
	var sb strings.Builder
	sb.WriteString("| # | Bot | Votes | % |\n|---|-----|------:|--:|\n")
	for i, r := range rows {
		fmt.Fprintf(&sb, "| %d | %s | %d | %d%% |\n", i+1, escapeCell(r.Name), r.Votes, RoundPercent(r.Percentage))
	}
	return sb.String()
}

func escapeCell(s string) string { return strings.ReplaceAll(s, "|", `\|`) }

// Log records a timestamped entry and appends it to session.log right away,
// so the log survives a crash.
func (w *Writer) Log(msg string) {
	entry := fmt.Sprintf("%s %s", time.Now().Format(time.RFC3339), msg)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)

	f, err := os.OpenFile(filepath.Join(w.dir, "session.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, entry)
}

// Logf is Log with formatting; it fits clinic.WithLogger.
func (w *Writer) Logf(format string, args ...any) {
	w.Log(fmt.Sprintf(format, args...))
}

// WriteLog rewrites session.log with every entry logged so far.
func (w *Writer) WriteLog() error {
	w.mu.Lock()
	data := strings.Join(w.entries, "\n")
	w.mu.Unlock()
	if data != "" {
		data += "\n"
	}
	return w.write("session.log", []byte(data))
}

func (w *Writer) write(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("output: writing %s: %w", path, err)
	}
	return nil
}
