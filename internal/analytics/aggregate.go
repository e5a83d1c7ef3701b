// Package analytics derives deterministic aggregates from the feedback
// corpus. Summarize is a pure function recomputed on every corpus
// change - the corpus sizes involved do not warrant incremental
// maintenance or caching.
package analytics

import (
	"math"

	"sentilytics/internal/logging"
	"sentilytics/internal/types"
)

// Summarize computes the analytics view of the corpus: total, average
// rating to one decimal (0 for an empty corpus), sentiment distribution
// over records with a defined sentiment, category distribution over
// categories actually present, and the top category. Ties on the top
// category go to the category seen first in corpus order.
func Summarize(corpus []types.FeedbackRecord) types.AnalyticsSummary {
	summary := types.AnalyticsSummary{
		Total:                 len(corpus),
		SentimentDistribution: make(map[types.Sentiment]int),
		CategoryDistribution:  make(map[types.Category]int),
	}

	if len(corpus) == 0 {
		return summary
	}

	ratingSum := 0
	firstSeen := make(map[types.Category]int)
	for i, rec := range corpus {
		ratingSum += rec.Rating

		if _, ok := types.ParseSentiment(string(rec.Sentiment)); ok {
			summary.SentimentDistribution[rec.Sentiment]++
		}

		if _, ok := firstSeen[rec.Category]; !ok {
			firstSeen[rec.Category] = i
		}
		summary.CategoryDistribution[rec.Category]++
	}

	avg := float64(ratingSum) / float64(len(corpus))
	summary.AverageRating = math.Round(avg*10) / 10

	summary.TopCategory = topCategory(summary.CategoryDistribution, firstSeen)

	logging.AnalyticsDebug("Summarize: total=%d avg=%.1f sentiments=%d categories=%d",
		summary.Total, summary.AverageRating, len(summary.SentimentDistribution), len(summary.CategoryDistribution))
	return summary
}

// topCategory picks the category with the highest count, breaking ties
// by first appearance in the corpus.
func topCategory(counts map[types.Category]int, firstSeen map[types.Category]int) types.Category {
	var top types.Category
	bestCount := 0
	bestSeen := math.MaxInt
	for cat, count := range counts {
		seen := firstSeen[cat]
		if count > bestCount || (count == bestCount && seen < bestSeen) {
			top = cat
			bestCount = count
			bestSeen = seen
		}
	}
	return top
}
