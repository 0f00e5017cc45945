package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"FinSheet/internal/alphavantage"
	"FinSheet/internal/analysis"
	"FinSheet/internal/cache"
	"FinSheet/internal/config"
	"FinSheet/internal/export"
	"FinSheet/internal/journal"
	"FinSheet/internal/model"
	"FinSheet/internal/prices"
	"FinSheet/internal/scheduler"
	"FinSheet/internal/settings"
)

func main() {
	var (
		cfgPath   = flag.String("config", "configs/config.yaml", "path to the YAML config file")
		symbol    = flag.String("symbol", "", "stock symbol, e.g. AAPL")
		period    = flag.String("period", "annual", "report period: annual or quarter")
		years     = flag.Int("years", 15, "number of years to fetch (1-50)")
		outDir    = flag.String("out", "", "export directory (overrides the saved setting)")
		apiKey    = flag.String("api-key", "", "validate and store this Alpha Vantage API key, then exit")
		watch     = flag.Bool("watch", false, "keep running and refresh on the configured cron schedule")
		noJournal = flag.Bool("no-journal", false, "disable the SQLite fetch journal")
	)
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config validation")
	}

	store := settings.NewStore(cfg.Settings.File, defaultSaveDir(), logger)

	if *apiKey != "" {
		os.Exit(validateAndStoreKey(logger, cfg, store, *apiKey))
	}

	current := store.Get()
	if !current.APIKeyValidated {
		logger.Fatal().Msg("no validated API key; run with -api-key YOUR_KEY first")
	}

	if *symbol == "" {
		logger.Fatal().Msg("-symbol is required")
	}
	p, err := model.ParsePeriod(strings.ToLower(*period))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid -period")
	}
	req := analysis.Request{Symbol: strings.ToUpper(strings.TrimSpace(*symbol)), Period: p, Years: *years}
	if err := analysis.ValidateRequest(req); err != nil {
		logger.Fatal().Err(err).Msg("invalid request")
	}

	cacheStore, err := cache.NewStore(cfg.Cache.Dir, cfg.CacheTTL(), logger.With().Str("component", "cache").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("init cache")
	}

	var jrnl journal.Journal = journal.NewNoop()
	if cfg.Journal.SQLitePath != "" && !*noJournal {
		sj, err := journal.NewSQLiteJournal(cfg.Journal.SQLitePath, logger.With().Str("component", "journal").Logger())
		if err != nil {
			logger.Warn().Err(err).Msg("init sqlite journal failed, using noop")
		} else {
			jrnl = sj
			defer sj.Close()
		}
	}

	avClient := alphavantage.NewClient(
		current.APIKey,
		logger.With().Str("component", "alphavantage").Logger(),
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithHTTPClient(newHTTPClient(cfg.Proxy, cfg.Timeout())),
		alphavantage.WithMaxRetries(cfg.Fetch.MaxRetries),
		alphavantage.WithRetryDelay(cfg.RateLimitSleep()),
	)
	priceClient := prices.NewClient(
		logger.With().Str("component", "prices").Logger(),
		prices.WithBaseURL(cfg.Yahoo.BaseURL),
		prices.WithHTTPClient(newHTTPClient(cfg.Proxy, 30*time.Second)),
	)

	analyzer := analysis.NewAnalyzer(cacheStore, avClient, priceClient, jrnl, logger.With().Str("component", "analysis").Logger())
	analyzer.NormalSleep = cfg.NormalSleep()
	analyzer.PruneMaxAge = cfg.CacheMaxAge()

	saveDir := current.SaveDirectory
	if *outDir != "" {
		saveDir = *outDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOnce := func() error {
		return runAnalysis(ctx, analyzer, req, saveDir)
	}

	if !*watch {
		if err := runOnce(); err != nil {
			logger.Fatal().Err(err).Msg("analysis failed")
		}
		return
	}

	if cfg.Schedule.RefreshCron == "" {
		logger.Fatal().Msg("-watch requires schedule.refresh_cron in the config")
	}
	sched := scheduler.NewScheduler(
		logger.With().Str("component", "scheduler").Logger(),
		func() {
			if err := runOnce(); err != nil {
				logger.Error().Err(err).Msg("scheduled refresh failed")
			}
		},
		func() {
			if removed, err := cacheStore.Prune(cfg.CacheMaxAge()); err != nil {
				logger.Error().Err(err).Msg("scheduled prune failed")
			} else {
				logger.Info().Int("removed", removed).Msg("scheduled prune done")
			}
		},
	)
	if err := sched.Register(cfg.Schedule.RefreshCron, cfg.Schedule.PruneCron); err != nil {
		logger.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()
	logger.Info().Str("symbol", req.Symbol).Msg("watch mode running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received, stopping")
	cancel()
}

// runAnalysis starts one run and dispatches its events on this goroutine.
// The worker never touches the terminal; everything it reports arrives
// through the event channel.
func runAnalysis(ctx context.Context, analyzer *analysis.Analyzer, req analysis.Request, saveDir string) error {
	events, err := analyzer.Start(ctx, req)
	if err != nil {
		return err
	}

	var completed *model.RunCompleted
	for ev := range events {
		switch e := ev.(type) {
		case model.ProgressUpdate:
			fmt.Printf("[%3.0f%%]\n", e.Percent)
		case model.LogLine:
			fmt.Println(e.Text)
		case model.RunCompleted:
			c := e
			completed = &c
		case model.RunFailed:
			return fmt.Errorf("run failed: %s", e.Reason)
		}
	}
	if completed == nil {
		return fmt.Errorf("run ended without a result")
	}

	path, err := export.Write(completed.Financials, completed.Prices, completed.Symbol, saveDir)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}

func validateAndStoreKey(logger zerolog.Logger, cfg *config.Config, store *settings.Store, key string) int {
	client := alphavantage.NewClient(
		key,
		logger.With().Str("component", "alphavantage").Logger(),
		alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
		alphavantage.WithHTTPClient(newHTTPClient(cfg.Proxy, 10*time.Second)),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ok, msg := client.ValidateKey(ctx)
	if err := store.SetAPIKey(key, ok); err != nil {
		logger.Error().Err(err).Msg("save settings")
		return 1
	}
	fmt.Println(msg)
	if !ok {
		return 1
	}
	return 0
}

// newHTTPClient builds a client with the given timeout and optional proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// defaultSaveDir is the application's own directory, matching the settings
// default for a fresh install.
func defaultSaveDir() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
