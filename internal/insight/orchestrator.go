// Package insight exposes the AI-backed domain operations: per-comment
// sentiment analysis, corpus-wide insight generation, and chat queries.
// It composes the context assembler, the gateway, and the retry
// executor, and decides which failures are masked and which escape.
package insight

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sentilytics/internal/logging"
	"sentilytics/internal/prompt"
	"sentilytics/internal/retry"
	"sentilytics/internal/types"
)

// UnavailableSummary is the fail-open summary used when sentiment
// analysis ultimately fails. Analysis is best-effort and must never
// block feedback submission.
const UnavailableSummary = "Analysis unavailable."

// EmptyReply is the assistant text used when the service returns an
// empty chat reply.
const EmptyReply = "I'm sorry, I couldn't generate a response."

// backfillConcurrency bounds concurrent analysis calls during Backfill.
const backfillConcurrency = 4

// Gateway is the AI backend surface the orchestrator composes. The
// production implementation is gateway.Client.
type Gateway interface {
	ClassifySentiment(ctx context.Context, comment string) (types.AnalysisResult, error)
	GenerateInsights(ctx context.Context, data string) (types.InsightSummary, error)
	ChatQuery(ctx context.Context, briefing, query string) (string, error)
}

// Orchestrator wires the gateway behind the retry executor. Operations
// share no mutable state, so concurrent calls are safe.
type Orchestrator struct {
	gateway   Gateway
	retryOpts retry.Options
}

// New creates an Orchestrator with the default retry bounds.
func New(gw Gateway) *Orchestrator {
	return &Orchestrator{gateway: gw, retryOpts: retry.DefaultOptions()}
}

// NewWithRetryOptions creates an Orchestrator with custom retry bounds.
func NewWithRetryOptions(gw Gateway, opts retry.Options) *Orchestrator {
	return &Orchestrator{gateway: gw, retryOpts: opts}
}

// AnalyzeSentiment classifies one comment. Fail-open: any ultimate
// failure (retries exhausted or non-retryable) degrades to a neutral
// default so the submission flow always completes. It never errors.
func (o *Orchestrator) AnalyzeSentiment(ctx context.Context, comment string) types.AnalysisResult {
	result, err := retry.Do(ctx, func(ctx context.Context) (types.AnalysisResult, error) {
		return o.gateway.ClassifySentiment(ctx, comment)
	}, o.retryOpts)
	if err != nil {
		logging.InsightError("AnalyzeSentiment: degrading to neutral default: %v", err)
		return types.AnalysisResult{Sentiment: types.SentimentNeutral, Summary: UnavailableSummary}
	}
	return result
}

// GenerateGlobalInsights produces themes and recommendations over the
// supplied corpus slice. Fail-closed: the classified error escapes so
// the caller can render an explicit failed state with a manual retry.
func (o *Orchestrator) GenerateGlobalInsights(ctx context.Context, corpus []types.FeedbackRecord) (types.InsightSummary, error) {
	data := prompt.AnalysisContext(corpus)
	return retry.Do(ctx, func(ctx context.Context) (types.InsightSummary, error) {
		return o.gateway.GenerateInsights(ctx, data)
	}, o.retryOpts)
}

// ChatQuery answers a user question grounded in the supplied corpus
// slice. Fail-closed: on failure the caller appends a placeholder
// message rather than crashing the transcript.
func (o *Orchestrator) ChatQuery(ctx context.Context, corpus []types.FeedbackRecord, query string) (string, error) {
	briefing := prompt.ChatContext(corpus)
	return retry.Do(ctx, func(ctx context.Context) (string, error) {
		return o.gateway.ChatQuery(ctx, briefing, query)
	}, o.retryOpts)
}

// Backfill analyzes records that are still missing a sentiment, with
// bounded concurrency. Each record is best-effort: a record whose
// analysis fails carries the neutral default, per AnalyzeSentiment.
// Returns a new slice; the input corpus is not mutated.
func (o *Orchestrator) Backfill(ctx context.Context, corpus []types.FeedbackRecord) []types.FeedbackRecord {
	out := make([]types.FeedbackRecord, len(corpus))
	copy(out, corpus)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(backfillConcurrency)

	pending := 0
	for i := range out {
		if out[i].Sentiment != "" {
			continue
		}
		pending++
		i := i
		eg.Go(func() error {
			out[i] = types.ApplyAnalysis(out[i], o.AnalyzeSentiment(egCtx, out[i].Comment))
			return nil
		})
	}
	_ = eg.Wait() // workers never error; fail-open per record

	if pending > 0 {
		logging.Insight("Backfill: analyzed %d/%d records", pending, len(out))
	}
	return out
}

// UserMessage renders a classified failure for the insights panel.
func UserMessage(err error) string {
	switch retry.Classify(err) {
	case retry.ClassAuthentication:
		return fmt.Sprintf("Authentication failed (%d): check that your API key is set correctly.", retry.Status(err))
	case retry.ClassRateLimited:
		return "Rate limit exceeded: please wait a minute and try again."
	default:
		return fmt.Sprintf("AI service error: %v. Verify your connectivity.", err)
	}
}

// ChatPlaceholder renders the assistant message appended to the
// transcript when a chat turn fails.
func ChatPlaceholder(err error) string {
	if retry.Classify(err) == retry.ClassRateLimited {
		return "Rate limit reached. Please wait a bit."
	}
	if status := retry.Status(err); status != 0 {
		return fmt.Sprintf("Technical hiccup (%d). Please try again.", status)
	}
	return "Technical hiccup (network error). Please try again."
}
