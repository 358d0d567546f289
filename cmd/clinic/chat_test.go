package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

func newChatSession(t *testing.T, fail map[string]bool) (*clinic.Session, *replyProgress) {
	t.Helper()
	backend := clinic.BackendFunc(func(_ context.Context, req clinic.Request) (string, error) {
		if fail[req.Model] {
			return "", errors.New("backend down")
		}
		return "reply from " + req.Model, nil
	})
	progress := &replyProgress{}
	gen := clinic.NewGenerator(backend)
	gen.OnCandidate = progress.candidate
	sess := clinic.NewSession(&clinic.MemoryStore{}, gen)
	ctx := context.Background()
	if err := sess.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, m := range []string{"m1", "m2"} {
		if _, err := sess.AddBot(ctx, clinic.Bot{Name: m, Model: m, Enabled: true}); err != nil {
			t.Fatalf("AddBot: %v", err)
		}
	}
	return sess, progress
}

func totalVotes(sess *clinic.Session) int {
	n := 0
	for _, r := range sess.Stats() {
		n += r.Votes
	}
	return n
}

func TestChatLoopVote(t *testing.T) {
	sess, progress := newChatSession(t, nil)
	turns, err := chatLoop(context.Background(), sess, strings.NewReader("hello\n1\n/stats\n/quit\n"), progress)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want greeting, message and reply: %+v", len(turns), turns)
	}
	if turns[1].Role != clinic.RoleUser || turns[1].Text != "hello" {
		t.Errorf("turn 1 = %+v", turns[1])
	}
	if !strings.HasPrefix(turns[2].Text, "reply from ") {
		t.Errorf("turn 2 = %+v", turns[2])
	}
	if got := totalVotes(sess); got != 1 {
		t.Errorf("votes = %d, want 1", got)
	}
	if sess.Running() {
		t.Error("chat should be stopped after /quit")
	}
	if progress.done != 2 || progress.total != 2 {
		t.Errorf("progress = %d/%d, want 2/2", progress.done, progress.total)
	}
}

func TestChatLoopRejectsBadPickThenVotes(t *testing.T) {
	sess, progress := newChatSession(t, nil)
	turns, err := chatLoop(context.Background(), sess, strings.NewReader("hello\nx\n7\nr\n2\n"), progress)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns: %+v", len(turns), turns)
	}
	if got := totalVotes(sess); got != 1 {
		t.Errorf("votes = %d, want 1", got)
	}
}

func TestChatLoopDiscard(t *testing.T) {
	sess, progress := newChatSession(t, nil)
	turns, err := chatLoop(context.Background(), sess, strings.NewReader("hello\nd\n"), progress)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("discarded message should be rolled back, got %+v", turns)
	}
	if got := totalVotes(sess); got != 0 {
		t.Errorf("votes = %d, want 0", got)
	}
}

func TestChatLoopAllBotsFail(t *testing.T) {
	sess, progress := newChatSession(t, map[string]bool{"m1": true, "m2": true})
	turns, err := chatLoop(context.Background(), sess, strings.NewReader("hello\n"), progress)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("failed round should leave only the greeting, got %+v", turns)
	}
}

func TestChatLoopPartialRound(t *testing.T) {
	sess, progress := newChatSession(t, map[string]bool{"m2": true})
	turns, err := chatLoop(context.Background(), sess, strings.NewReader("hello\n1\n"), progress)
	if err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(turns) != 3 || turns[2].Text != "reply from m1" {
		t.Fatalf("turns = %+v", turns)
	}
	for _, r := range sess.Stats() {
		if r.Name == "m1" && r.Votes != 1 {
			t.Errorf("m1 votes = %d, want 1", r.Votes)
		}
	}
}

func TestParseParams(t *testing.T) {
	got := parseParams(map[string]string{"temperature": "0.7", "stop": `["\n"]`, "mode": "fast"})
	if got["temperature"] != 0.7 {
		t.Errorf("temperature = %#v", got["temperature"])
	}
	if s, ok := got["stop"].([]any); !ok || len(s) != 1 {
		t.Errorf("stop = %#v", got["stop"])
	}
	if got["mode"] != "fast" {
		t.Errorf("mode = %#v", got["mode"])
	}
	if parseParams(nil) != nil {
		t.Error("empty input should give nil")
	}
}
