package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/output"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal and vote for the best reply each round",
		RunE:  runChat,
	}
	cmd.Flags().String("name", "", "Output folder name (default: chat)")
	cmd.Flags().Bool("no-export", false, "Do not write the transcript when the chat ends")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var writer *output.Writer
	logf := func(format string, args ...any) {
		if writer != nil {
			writer.Logf(format, args...)
		}
	}

	a, err := newApp(ctx, true, clinic.WithLogger(logf))
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.seed(ctx); err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = "chat"
	}
	outDir, err := output.CreateOutputDir(a.cfg.OutputDir, output.GenerateSlug(name))
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	writer = output.NewWriter(outDir)

	fmt.Printf("Chatbot Clinic: %d enabled bots | Output: %s\n", enabledBots(a.session), outDir)
	fmt.Println("Type a message. Commands: /stats, /quit")

	progress := &replyProgress{}
	a.gen.OnCandidate = progress.candidate
	turns, err := chatLoop(ctx, a.session, os.Stdin, progress)
	if err != nil {
		return err
	}

	if noExport, _ := cmd.Flags().GetBool("no-export"); !noExport {
		t := output.NewTranscript(name, a.session.Settings(), turns, a.session.Bots(), a.session.Stats())
		if err := writer.WriteJSON(t); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
		if err := writer.WriteMarkdown(t); err != nil {
			return fmt.Errorf("writing markdown: %w", err)
		}
	}
	if err := writer.WriteLog(); err != nil {
		return fmt.Errorf("writing log: %w", err)
	}
	fmt.Printf("\nChat ended. Output saved to: %s\n", writer.Dir())
	return nil
}

// replyProgress counts replies of the round being generated without saying
// which bot they came from.
type replyProgress struct {
	mu          sync.Mutex
	done, total int
}

func (p *replyProgress) start(total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done, p.total = 0, total
}

func (p *replyProgress) candidate(clinic.Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	output.PrintProgress(p.done, p.total)
}

func enabledBots(sess *clinic.Session) int {
	n := 0
	for _, b := range sess.Bots() {
		if b.Enabled {
			n++
		}
	}
	return n
}

// chatLoop runs rounds until /quit or end of input and returns the
// conversation as it stood when the chat ended.
func chatLoop(ctx context.Context, sess *clinic.Session, in io.Reader, progress *replyProgress) ([]clinic.Turn, error) {
	sc := bufio.NewScanner(in)
	sess.Start()
	settings := sess.Settings()
	for _, t := range sess.Conversation() {
		output.PrintTurn(settings, t)
	}

	read := func(prompt string) (string, bool) {
		fmt.Print(output.Colorize(output.AnsiMagenta, prompt))
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}

	for ctx.Err() == nil {
		line, ok := read(settings.UserName + "> ")
		if !ok {
			break
		}
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return stopChat(sess), nil
		case "/stats":
			output.PrintStats(sess.Stats())
			continue
		}

		progress.start(enabledBots(sess))
		view, err := sess.Send(ctx, line)
		if err != nil {
			reportRoundError(err)
			continue
		}
		if !pick(ctx, sess, view, read, progress) {
			break
		}
	}
	return stopChat(sess), sc.Err()
}

// pick asks for a vote until one is recorded or the round is discarded. It
// returns false when input ran out.
func pick(ctx context.Context, sess *clinic.Session, view clinic.RoundView, read func(string) (string, bool), progress *replyProgress) bool {
	settings := sess.Settings()
	for {
		output.PrintRound(view)
		answer, ok := read(fmt.Sprintf("Pick 1-%d, r to retry, d to discard: ", len(view.Replies)))
		if !ok {
			return false
		}
		switch strings.ToLower(answer) {
		case "r":
			progress.start(enabledBots(sess))
			next, err := sess.Retry(ctx, view.ID)
			if err != nil {
				reportRoundError(err)
				return true
			}
			view = next
			continue
		case "d":
			if err := sess.Discard(view.ID); err != nil {
				output.PrintError(err)
			}
			return true
		}

		n, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Println("Please enter a number, r or d.")
			continue
		}
		turn, err := sess.Vote(ctx, view.ID, n-1)
		var ise *clinic.InvalidSelectionError
		if errors.As(err, &ise) {
			fmt.Printf("%d is not one of the replies.\n", n)
			continue
		}
		if err != nil {
			// The vote is counted; only saving failed.
			output.PrintError(err)
		}
		output.PrintPhase(clinic.Recorded)
		output.PrintTurn(settings, turn)
		return true
	}
}

func reportRoundError(err error) {
	var dre *clinic.DegradedRoundError
	if errors.As(err, &dre) {
		output.PrintDegraded(dre.Failed, dre.Total)
		fmt.Println("The round was discarded, send your message again to retry.")
		return
	}
	output.PrintError(err)
}

func stopChat(sess *clinic.Session) []clinic.Turn {
	turns := sess.Conversation()
	sess.Stop()
	return turns
}
