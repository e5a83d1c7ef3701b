package prompt

import (
	"strings"
	"testing"

	"sentilytics/internal/types"
)

func records(n int) []types.FeedbackRecord {
	out := make([]types.FeedbackRecord, n)
	for i := range out {
		out[i] = types.FeedbackRecord{
			UserName: "alice",
			Rating:   4,
			Category: types.CategoryGeneral,
			Comment:  "fine",
		}
	}
	return out
}

func TestAnalysisContextEmpty(t *testing.T) {
	if got := AnalysisContext(nil); got != "" {
		t.Errorf("AnalysisContext(nil) = %q, want empty", got)
	}
}

func TestAnalysisContextFormat(t *testing.T) {
	corpus := []types.FeedbackRecord{
		{Category: types.CategoryBugReport, Rating: 2, Comment: "search crashes"},
		{Category: types.CategoryUIUX, Rating: 5, Comment: "gorgeous"},
	}
	got := AnalysisContext(corpus)
	want := "[Bug Report] 2*: search crashes\n[UI/UX] 5*: gorgeous"
	if got != want {
		t.Errorf("AnalysisContext = %q, want %q", got, want)
	}
}

func TestAnalysisContextWindow(t *testing.T) {
	got := AnalysisContext(records(50))
	if lines := strings.Count(got, "\n") + 1; lines != AnalysisWindow {
		t.Errorf("lines = %d, want %d", lines, AnalysisWindow)
	}
}

func TestAnalysisContextTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := AnalysisContext([]types.FeedbackRecord{{Category: types.CategoryGeneral, Rating: 3, Comment: long}})
	want := "[General] 3*: " + strings.Repeat("x", AnalysisCommentLimit)
	if got != want {
		t.Errorf("truncated line = %q (len %d), want len %d", got, len(got), len(want))
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	// Multibyte runes must never be split mid-sequence.
	comment := strings.Repeat("é", 200)
	got := truncate(comment, AnalysisCommentLimit)
	if !strings.HasSuffix(got, "é") {
		t.Errorf("truncate produced invalid tail: %q", got[len(got)-4:])
	}
	if n := len([]rune(got)); n != AnalysisCommentLimit {
		t.Errorf("rune length = %d, want %d", n, AnalysisCommentLimit)
	}
}

func TestChatContextFormat(t *testing.T) {
	corpus := []types.FeedbackRecord{
		{UserName: "alice", Comment: "search is slow"},
		{UserName: "bob", Comment: "love it"},
	}
	got := ChatContext(corpus)
	want := "alice: search is slow\nbob: love it"
	if got != want {
		t.Errorf("ChatContext = %q, want %q", got, want)
	}
}

func TestChatContextWindowAndTruncation(t *testing.T) {
	corpus := records(40)
	for i := range corpus {
		corpus[i].Comment = strings.Repeat("y", 300)
	}
	got := ChatContext(corpus)

	lines := strings.Split(got, "\n")
	if len(lines) != ChatWindow {
		t.Fatalf("lines = %d, want %d", len(lines), ChatWindow)
	}
	wantLine := "alice: " + strings.Repeat("y", ChatCommentLimit)
	if lines[0] != wantLine {
		t.Errorf("line = %q, want %q", lines[0], wantLine)
	}
}

func TestOrderPreserved(t *testing.T) {
	corpus := []types.FeedbackRecord{
		{UserName: "first", Comment: "a"},
		{UserName: "second", Comment: "b"},
		{UserName: "third", Comment: "c"},
	}
	got := ChatContext(corpus)
	if strings.Index(got, "first") > strings.Index(got, "second") ||
		strings.Index(got, "second") > strings.Index(got, "third") {
		t.Errorf("order not preserved: %q", got)
	}
}
