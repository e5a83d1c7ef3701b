package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sentilytics/internal/insight"
	"sentilytics/internal/retry"
	"sentilytics/internal/types"
)

// scriptedGateway returns a fixed reply or error and refuses to answer
// on an already-dead context, like a real transport would.
type scriptedGateway struct {
	reply string
	err   error
}

func (g *scriptedGateway) ClassifySentiment(ctx context.Context, comment string) (types.AnalysisResult, error) {
	return types.AnalysisResult{}, errors.New("not used")
}

func (g *scriptedGateway) GenerateInsights(ctx context.Context, data string) (types.InsightSummary, error) {
	return types.InsightSummary{}, errors.New("not used")
}

func (g *scriptedGateway) ChatQuery(ctx context.Context, briefing, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func fastOrch(gw insight.Gateway) *insight.Orchestrator {
	opts := retry.DefaultOptions()
	opts.Backoff = time.Millisecond
	return insight.NewWithRetryOptions(gw, opts)
}

func TestChatTurnTimeoutIsPerTurn(t *testing.T) {
	orch := fastOrch(&scriptedGateway{reply: "answer"})
	transcript := insight.NewTranscript("hello")
	ctx := context.Background()
	turnTimeout := 30 * time.Millisecond

	if got := chatTurn(ctx, orch, nil, transcript, "first", turnTimeout); got != "answer" {
		t.Fatalf("first turn = %q, want %q", got, "answer")
	}

	// Sit idle past the turn timeout. The next turn must get a fresh
	// deadline rather than inheriting an expired session-wide one.
	time.Sleep(3 * turnTimeout)

	if got := chatTurn(ctx, orch, nil, transcript, "second", turnTimeout); got != "answer" {
		t.Errorf("turn after idle period = %q, want %q", got, "answer")
	}

	// Seed + two question/answer pairs.
	if n := transcript.Len(); n != 5 {
		t.Errorf("transcript length = %d, want 5", n)
	}
}

func TestChatTurnAppendsPlaceholderOnFailure(t *testing.T) {
	orch := fastOrch(&scriptedGateway{err: errors.New("dial tcp: connection refused")})
	transcript := insight.NewTranscript("hello")

	got := chatTurn(context.Background(), orch, nil, transcript, "anyone there?", time.Second)
	if !strings.Contains(got, "Technical hiccup") {
		t.Errorf("failed turn reply = %q, want a placeholder", got)
	}

	msgs := transcript.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != types.ChatRoleAssistant || last.Text != got {
		t.Errorf("last message = %+v, want the placeholder appended as assistant", last)
	}
	if msgs[len(msgs)-2].Role != types.ChatRoleUser {
		t.Errorf("user question missing from transcript: %+v", msgs)
	}
}

func TestChatTurnEmptyReply(t *testing.T) {
	orch := fastOrch(&scriptedGateway{reply: ""})
	transcript := insight.NewTranscript("hello")

	if got := chatTurn(context.Background(), orch, nil, transcript, "hm", time.Second); got != insight.EmptyReply {
		t.Errorf("empty reply turn = %q, want %q", got, insight.EmptyReply)
	}
}
