package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skyjoe/noticias-resumidas/db"
	"github.com/Skyjoe/noticias-resumidas/internal/cache"
	"github.com/Skyjoe/noticias-resumidas/internal/config"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
	"github.com/Skyjoe/noticias-resumidas/internal/repository"
	"github.com/Skyjoe/noticias-resumidas/pkg/news"
)

var (
	flagStart   int
	flagCount   int
	flagWarm    bool
	flagArchive bool

	flagHistoryCount int
)

var rootCmd = &cobra.Command{
	Use:           "fetcher",
	Short:         "One-shot news searches against the configured source",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the news source and print the results as JSON",
	Long:  "Runs one search through the same source the API uses. --warm stores the full result set in the shared Redis tier so API instances start with it cached; --archive saves it to Postgres.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var historyCmd = &cobra.Command{
	Use:   "history <query>",
	Short: "Print archived results for a query from Postgres",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	searchCmd.Flags().IntVar(&flagStart, "start", 0, "offset of the first result to print")
	searchCmd.Flags().IntVar(&flagCount, "count", 10, "number of results to print (max 20)")
	searchCmd.Flags().BoolVar(&flagWarm, "warm", false, "write the result set into the shared Redis cache")
	searchCmd.Flags().BoolVar(&flagArchive, "archive", false, "save the result set to Postgres")

	historyCmd.Flags().IntVar(&flagHistoryCount, "count", model.MaxResults, "number of archived results to print")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("fetcher failed", "error", err)
		os.Exit(1)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if flagStart < 0 || flagCount < 1 {
		return fmt.Errorf("start must be >= 0 and count >= 1, got start=%d count=%d", flagStart, flagCount)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	query := model.NormalizeQuery(args[0])
	if query == "" {
		return fmt.Errorf("query must not be empty")
	}

	searcher, err := news.NewSearcher(cfg.NewsSource, cfg.NewsLang, cfg.NewsRegion, cfg.FinnhubAPIKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
	defer cancel()

	raw, err := searcher.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("searching %s: %w", searcher.Name(), err)
	}
	items := news.ToNewsItems(raw, model.MaxResults)
	slog.Info("search complete", "source", searcher.Name(), "query", query, "raw", len(raw), "items", len(items))

	if flagWarm {
		if err := warm(cmd.Context(), cfg, query, items); err != nil {
			return err
		}
	}

	if flagArchive {
		if err := archive(cmd.Context(), cfg, query, items); err != nil {
			return err
		}
	}

	return printJSON(cache.Slice(items, flagStart, min(flagCount, model.MaxResults)))
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := db.Connect(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("connecting to DB: %w", err)
	}
	defer db.Close()

	items, err := repository.NewSearchRepository(db.DB).GetResults(cmd.Context(), model.NormalizeQuery(args[0]), flagHistoryCount)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	return printJSON(items)
}

func warm(ctx context.Context, cfg config.Config, query string, items []model.NewsItem) error {
	if err := db.ConnectRedis(ctx, cfg.RedisURL); err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}
	defer db.CloseRedis()

	tier := cache.NewRedisTier(db.Redis, db.SearchCacheKeyPrefix, cfg.SharedCacheTTL)
	entry := &model.CacheEntry{Query: query, Items: items, FetchedAt: time.Now()}
	if err := tier.Set(ctx, entry); err != nil {
		return fmt.Errorf("warming shared cache: %w", err)
	}

	slog.Info("shared cache warmed", "query", query, "items", len(items), "ttl", cfg.SharedCacheTTL)
	return nil
}

func archive(ctx context.Context, cfg config.Config, query string, items []model.NewsItem) error {
	if err := db.Connect(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("connecting to DB: %w", err)
	}
	defer db.Close()

	repo := repository.NewSearchRepository(db.DB)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.SaveResults(ctx, query, items); err != nil {
		return err
	}

	slog.Info("results archived", "query", query, "items", len(items))
	return nil
}

func printJSON(items []model.NewsItem) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(items)
}
