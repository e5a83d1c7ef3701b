// Package prompt assembles bounded, truncated context windows from the
// feedback corpus for AI calls. The assembler preserves the corpus
// order it is given (most-recent-first by convention) and applies no
// identity filtering - that happens upstream.
package prompt

import (
	"fmt"
	"strings"

	"sentilytics/internal/types"
)

const (
	// AnalysisWindow bounds the records included in analysis context.
	AnalysisWindow = 20
	// AnalysisCommentLimit is the hard cut applied to each comment.
	AnalysisCommentLimit = 150

	// ChatWindow bounds the records included in chat context.
	ChatWindow = 15
	// ChatCommentLimit is the hard cut applied to each comment.
	ChatCommentLimit = 100
)

// AnalysisContext renders up to AnalysisWindow records, one per line:
// [category] rating*: comment (hard cut, no ellipsis).
func AnalysisContext(records []types.FeedbackRecord) string {
	if len(records) > AnalysisWindow {
		records = records[:AnalysisWindow]
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("[%s] %d*: %s", r.Category, r.Rating, truncate(r.Comment, AnalysisCommentLimit)))
	}
	return strings.Join(lines, "\n")
}

// ChatContext renders up to ChatWindow records, one per line:
// author: comment (hard cut, no ellipsis).
func ChatContext(records []types.FeedbackRecord) string {
	if len(records) > ChatWindow {
		records = records[:ChatWindow]
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%s: %s", r.UserName, truncate(r.Comment, ChatCommentLimit)))
	}
	return strings.Join(lines, "\n")
}

// truncate hard-cuts s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
