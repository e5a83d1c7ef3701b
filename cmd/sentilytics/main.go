package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sentilytics/internal/analytics"
	"sentilytics/internal/config"
	"sentilytics/internal/insight"
	"sentilytics/internal/logging"
	"sentilytics/internal/session"
	"sentilytics/internal/types"
)

var (
	// Global flags
	verbose   bool
	apiKey    string
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sentilytics",
	Short: "Sentilytics - AI-powered feedback intelligence",
	Long: `Sentilytics collects product feedback and turns it into insight.

Feedback is stored locally in SQLite. Sentiment classification, theme
extraction, and the feedback chat assistant run against the Gemini API
with structured output contracts, so the AI layer degrades gracefully:
a failed analysis never blocks a submission.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist your identity",
	Long: `Stores your identity for subsequent commands.

Emails containing "admin" receive the admin role: full corpus
visibility, responses, deletion, and AI insights.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted identity",
	RunE:  runLogout,
}

var submitCmd = &cobra.Command{
	Use:   "submit [comment]",
	Short: "Submit a feedback record",
	Long: `Submits one feedback record and analyzes its sentiment.

The analysis is best-effort: if the AI service is unavailable the
record is stored with a neutral placeholder instead of failing.

Example:
  sentilytics submit --rating 4 --category "UI/UX" "Love the new dashboard"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible feedback, most recent first",
	RunE:  runList,
}

var respondCmd = &cobra.Command{
	Use:   "respond [id] [response]",
	Short: "Set or overwrite the response on a record (admin)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRespond,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a feedback record (admin or owner)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate analytics over visible feedback",
	RunE:  runStats,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate AI themes and recommendations (admin)",
	Long: `Asks the AI service for the top themes and recommendations over
recent feedback. Unlike sentiment analysis this is fail-closed: if the
service cannot be reached after retries, the failure is reported and
nothing is shown.`,
	RunE: runInsights,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Analyze stored feedback that is missing a sentiment (admin)",
	Long: `Re-runs sentiment analysis over records whose analysis previously
failed or was skipped, with bounded concurrency. Records that still
cannot be analyzed keep a neutral placeholder.`,
	RunE: runBackfill,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the AI assistant about your feedback",
	Long: `Starts an interactive session with the feedback assistant.
Answers are grounded in the feedback visible to you.

Commands inside the session:
  /clear  reset the conversation
  /quit   exit`,
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	var email, name string
	loginCmd.Flags().StringVar(&email, "email", "", "Your email (required)")
	loginCmd.Flags().StringVar(&name, "name", "", "Display name")
	loginCmd.MarkFlagRequired("email")

	var rating int
	var category string
	submitCmd.Flags().IntVar(&rating, "rating", 0, "Rating 1-5 (required)")
	submitCmd.Flags().StringVar(&category, "category", string(types.CategoryGeneral), "Feedback category")
	submitCmd.MarkFlagRequired("rating")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")

	user, err := session.Login(a.store, email, name)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (role: %s)\n", user.Email, user.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := session.Logout(a.store); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}

	rating, _ := cmd.Flags().GetInt("rating")
	rawCategory, _ := cmd.Flags().GetString("category")
	category, ok := types.ParseCategory(rawCategory)
	if !ok {
		return fmt.Errorf("unknown category %q (valid: %s)", rawCategory, categoryList())
	}

	rec, err := types.NewFeedbackRecord(user, rating, strings.Join(args, " "), category)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Analyzing sentiment", zap.String("id", rec.ID))
	rec = types.ApplyAnalysis(rec, a.orch.AnalyzeSentiment(ctx, rec.Comment))

	if err := a.store.Add(rec); err != nil {
		return err
	}

	fmt.Printf("Feedback %s submitted.\n", rec.ID)
	fmt.Printf("  Sentiment: %s\n", rec.Sentiment)
	if rec.AISummary != "" {
		fmt.Printf("  Summary:   %s\n", rec.AISummary)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	corpus, err := a.visibleCorpus(user)
	if err != nil {
		return err
	}

	if len(corpus) == 0 {
		fmt.Println("No feedback yet.")
		return nil
	}
	for _, rec := range corpus {
		fmt.Printf("%s  %s  %d*  [%s]  %s\n", rec.ID, rec.CreatedAt, rec.Rating, rec.Category, firstLine(rec.Comment))
		if rec.Sentiment != "" {
			fmt.Printf("    sentiment: %s  %s\n", rec.Sentiment, rec.AISummary)
		}
		if rec.Response != "" {
			fmt.Printf("    response:  %s\n", rec.Response)
		}
	}
	return nil
}

func runRespond(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return fmt.Errorf("only admins can respond to feedback")
	}

	id := args[0]
	if err := a.store.SetResponse(id, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Printf("Response recorded on %s.\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}

	id := args[0]
	rec, err := a.store.Get(id)
	if err != nil {
		return err
	}
	if !user.IsAdmin() && rec.UserEmail != user.Email {
		return fmt.Errorf("feedback %s belongs to another user", id)
	}

	if err := a.store.Delete(id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s.\n", id)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	corpus, err := a.visibleCorpus(user)
	if err != nil {
		return err
	}

	summary := analytics.Summarize(corpus)
	fmt.Printf("Total feedback:  %d\n", summary.Total)
	fmt.Printf("Average rating:  %.1f\n", summary.AverageRating)

	if len(summary.SentimentDistribution) > 0 {
		fmt.Println("Sentiment:")
		for _, s := range []types.Sentiment{types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative} {
			if n, ok := summary.SentimentDistribution[s]; ok {
				fmt.Printf("  %-9s %d\n", s, n)
			}
		}
	}
	if len(summary.CategoryDistribution) > 0 {
		fmt.Println("Categories:")
		cats := make([]string, 0, len(summary.CategoryDistribution))
		for c := range summary.CategoryDistribution {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Printf("  %-16s %d\n", c, summary.CategoryDistribution[types.Category(c)])
		}
		fmt.Printf("Top category:    %s\n", summary.TopCategory)
	}
	return nil
}

func runInsights(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return fmt.Errorf("only admins can generate insights")
	}

	corpus, err := a.store.List()
	if err != nil {
		return err
	}
	if len(corpus) == 0 {
		fmt.Println("No feedback to analyze yet.")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := a.orch.GenerateGlobalInsights(ctx, corpus)
	if err != nil {
		logger.Warn("Insight generation failed", zap.Error(err))
		return fmt.Errorf("%s", insight.UserMessage(err))
	}

	fmt.Println("Top themes:")
	for i, theme := range summary.TopThemes {
		fmt.Printf("  %d. %s\n", i+1, theme)
	}
	fmt.Println("Recommendations:")
	for i, rec := range summary.Recommendations {
		fmt.Printf("  %d. %s\n", i+1, rec)
	}
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return fmt.Errorf("only admins can backfill analysis")
	}

	corpus, err := a.store.List()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	analyzed := a.orch.Backfill(ctx, corpus)

	updated := 0
	for i := range analyzed {
		if analyzed[i].Sentiment == corpus[i].Sentiment && analyzed[i].AISummary == corpus[i].AISummary {
			continue
		}
		if err := a.store.Update(analyzed[i]); err != nil {
			return err
		}
		updated++
	}
	fmt.Printf("Backfilled %d of %d records.\n", updated, len(corpus))
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.currentUser()
	if err != nil {
		return err
	}
	corpus, err := a.visibleCorpus(user)
	if err != nil {
		return err
	}

	// The session context carries signal cancellation only; --timeout is
	// applied per turn so an idle session never expires.
	ctx, cancel := sessionContext()
	defer cancel()

	// Pick up config edits (e.g. model changes) while the session runs.
	watcher, err := config.NewWatcher(filepath.Join(a.workspace, config.DefaultPath), func(cfg *config.Config) {
		if cfg.Gemini.Model != "" && cfg.Gemini.Model != a.gateway.GetModel() {
			logger.Info("Switching model", zap.String("model", cfg.Gemini.Model))
			a.gateway.SetModel(cfg.Gemini.Model)
		}
	})
	if err != nil {
		logger.Debug("Config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err == nil {
			defer watcher.Stop()
		}
	}

	transcript := insight.NewTranscript(insight.Greeting(user))
	fmt.Println(insight.Greeting(user))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case line == "/clear":
			transcript.Clear(insight.ClearedGreeting)
			fmt.Println(insight.ClearedGreeting)
			continue
		}

		fmt.Println(chatTurn(ctx, a.orch, corpus, transcript, line, timeout))
	}
	return scanner.Err()
}

// chatTurn runs one question/answer exchange and returns the assistant
// text appended to the transcript. The timeout applies to this turn
// only; the parent context carries session-wide cancellation.
func chatTurn(ctx context.Context, orch *insight.Orchestrator, corpus []types.FeedbackRecord, transcript *insight.Transcript, line string, turnTimeout time.Duration) string {
	transcript.Append(types.ChatRoleUser, line)

	turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	reply, err := orch.ChatQuery(turnCtx, corpus, line)
	if err != nil {
		reply = insight.ChatPlaceholder(err)
	} else if reply == "" {
		reply = insight.EmptyReply
	}
	transcript.Append(types.ChatRoleAssistant, reply)
	return reply
}

// signalContext builds the per-operation context: global timeout plus
// SIGINT/SIGTERM cancellation.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return withSignalCancel(ctx, cancel)
}

// sessionContext builds a context with signal cancellation but no
// deadline, for interactive sessions that apply timeouts per turn.
func sessionContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	return withSignalCancel(ctx, cancel)
}

func withSignalCancel(ctx context.Context, cancel context.CancelFunc) (context.Context, context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func categoryList() string {
	names := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}
