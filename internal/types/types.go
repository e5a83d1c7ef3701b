// Package types holds the shared domain model for Sentilytics:
// feedback records, users, analysis outputs, and the session value
// passed into every core operation.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentiment is the classified tone of a feedback comment.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// ParseSentiment maps a raw string onto the closed sentiment set.
// Unknown values (including empty) report ok=false.
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return Sentiment(s), true
	}
	return "", false
}

// Category is the closed set of feedback categories.
type Category string

const (
	CategoryFeatureRequest Category = "Feature Request"
	CategoryBugReport      Category = "Bug Report"
	CategoryUIUX           Category = "UI/UX"
	CategoryPerformance    Category = "Performance"
	CategoryGeneral        Category = "General"
)

// Categories lists every valid category, in canonical order.
var Categories = []Category{
	CategoryFeatureRequest,
	CategoryBugReport,
	CategoryUIUX,
	CategoryPerformance,
	CategoryGeneral,
}

// ParseCategory maps a raw string onto the closed category set.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if Category(s) == c {
			return c, true
		}
	}
	return "", false
}

// Role distinguishes admins (full corpus visibility) from regular users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User identifies the caller of a core operation. Identity resolution
// happens outside the core; the core only reads these fields.
type User struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// IsAdmin reports whether the user sees the full corpus.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// FeedbackRecord is one submitted piece of feedback. Sentiment and
// AISummary stay empty until a successful analysis call merges them in;
// Response may be set or overwritten by an admin any number of times.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Category  Category  `json:"category"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	AISummary string    `json:"aiSummary,omitempty"`
	Response  string    `json:"response,omitempty"`
	CreatedAt string    `json:"createdAt"`
}

// NewFeedbackRecord builds a record with a fresh id and timestamp.
// Rating must be in [1,5] and the comment non-empty.
func NewFeedbackRecord(user User, rating int, comment string, category Category) (FeedbackRecord, error) {
	if rating < 1 || rating > 5 {
		return FeedbackRecord{}, fmt.Errorf("rating %d out of range [1,5]", rating)
	}
	if comment == "" {
		return FeedbackRecord{}, fmt.Errorf("comment must not be empty")
	}
	if _, ok := ParseCategory(string(category)); !ok {
		return FeedbackRecord{}, fmt.Errorf("unknown category %q", category)
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	return FeedbackRecord{
		ID:        uuid.NewString(),
		UserName:  name,
		UserEmail: user.Email,
		Rating:    rating,
		Comment:   comment,
		Category:  category,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// AnalysisResult is the transient output of a sentiment analysis call.
// It is never persisted on its own; ApplyAnalysis merges it into a record.
type AnalysisResult struct {
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary"`
}

// ApplyAnalysis merges an analysis result into a record. Sentiment and
// summary are set exactly once; a record that already carries a
// sentiment is returned unchanged.
func ApplyAnalysis(rec FeedbackRecord, result AnalysisResult) FeedbackRecord {
	if rec.Sentiment != "" {
		return rec
	}
	rec.Sentiment = result.Sentiment
	rec.AISummary = result.Summary
	return rec
}

// InsightSummary is the AI-generated view over the corpus. The contract
// asks for three themes and three recommendations, but the service may
// return fewer or more; callers must tolerate both.
type InsightSummary struct {
	TopThemes       []string `json:"topThemes"`
	Recommendations []string `json:"recommendations"`
}

// ChatMessage is one entry in the assistant transcript.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// AnalyticsSummary is the deterministic aggregate view of the corpus.
// TopThemes/Recommendations are populated only after a successful
// insight generation call; until then they are nil.
type AnalyticsSummary struct {
	Total                 int               `json:"total"`
	AverageRating         float64           `json:"averageRating"`
	SentimentDistribution map[Sentiment]int `json:"sentimentDistribution"`
	CategoryDistribution  map[Category]int  `json:"categoryDistribution"`
	TopCategory           Category          `json:"topCategory,omitempty"`
	TopThemes             []string          `json:"topThemes,omitempty"`
	Recommendations       []string          `json:"recommendations,omitempty"`
}

// Session is the explicit per-call context: who is asking and which
// corpus snapshot they operate on. No ambient globals.
type Session struct {
	User   User
	Corpus []FeedbackRecord
}
