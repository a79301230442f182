package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/api"
	"github.com/micko4develop/crypto-dash/internal/cache"
	"github.com/micko4develop/crypto-dash/internal/chart"
	"github.com/micko4develop/crypto-dash/internal/config"
	"github.com/micko4develop/crypto-dash/internal/dashboard"
	"github.com/micko4develop/crypto-dash/internal/db"
	"github.com/micko4develop/crypto-dash/internal/detail"
	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/httputil"
	"github.com/micko4develop/crypto-dash/internal/logger"
	"github.com/micko4develop/crypto-dash/internal/metrics"
	"github.com/micko4develop/crypto-dash/internal/models"
	"github.com/micko4develop/crypto-dash/internal/notifications"
	"github.com/micko4develop/crypto-dash/internal/repository"
	"github.com/micko4develop/crypto-dash/internal/stream"
)

const banner = `
╔══════════════════════════════════════╗
║        Crypto Market Dashboard       ║
║                                      ║
╚══════════════════════════════════════╝
`

// marketSource serves both the listing and the detail screen.
type marketSource interface {
	FetchListing(ctx context.Context) ([]models.Asset, error)
	FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error)
	FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error)
}

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	for _, w := range cfg.Warnings() {
		log.Warn().Str("component", "config").Msg(w)
	}

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("crypto_dash")

	src, pinger, closeSource, err := openSource(ctx, cfg, m, log)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.FeedSource).Msg("feed source unavailable")
	}
	defer closeSource()

	// Controllers
	store := cache.NewStore(cfg.CacheTTL(), time.Now)
	dash := dashboard.NewController(src, store, dashboard.Options{
		FetchTimeout: cfg.FeedTimeout() + 5*time.Second,
		PageSize:     cfg.DefaultPageSize,
		Sort:         cfg.Sort(),
		Metrics:      m,
	}, log)
	details := detail.NewController(src, detail.Options{
		Days: cfg.ChartDays,
		Canvas: chart.Canvas{
			Width:    cfg.ChartWidth,
			Height:   cfg.ChartHeight,
			Margins:  chart.DefaultCanvas.Margins,
			Location: cfg.Location(),
		},
		Timeout: cfg.FeedTimeout() + 5*time.Second,
		Metrics: m,
	}, log)

	// Observers: stream subscribers and outage alerts
	hub := stream.NewHub(dash.View, cfg.CORSAllowOrigin, m, log)
	dash.Observe(hub.Observe)

	alerts := notifications.NewFailureAlerter(notifications.NewSender(cfg.WebhookURL, cfg.AppName, log), log)
	dash.Observe(alerts.Observe)

	// API server
	srv := api.NewServer(api.Deps{
		Dashboard: dash,
		Detail:    details,
		Stream:    hub,
		Metrics:   m,
		DB:        pinger,
		Source:    cfg.FeedSource,
	}, api.Options{
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
	}, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server error")
		}
	}()

	log.Info().Msg("all services started")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	details.Close()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API shutdown error")
	}
	alerts.Wait()
	log.Info().Msg("shutdown complete")
}

// openSource builds the configured feed source. pinger is non-nil whenever
// the database mirror is in use, for reads or for writes.
func openSource(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) (marketSource, api.Pinger, func(), error) {
	switch cfg.FeedSource {
	case config.SourceFixture:
		log.Info().Msg("using offline fixture data")
		return feed.NewFixtureSource(nil), nil, func() {}, nil

	case config.SourcePostgres:
		pool, closePool, err := openMirror(ctx, cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return repository.NewMarketRepo(pool, cfg.FeedPerPage), pool, closePool, nil

	default:
		retry := httputil.NoRetry
		if cfg.FeedMaxAttempts > 1 {
			retry = httputil.RetryConfig{
				MaxAttempts: cfg.FeedMaxAttempts,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    4 * time.Second,
			}
		}
		client := feed.NewCoinGeckoClient(feed.Options{
			BaseURL:    cfg.FeedBaseURL,
			VSCurrency: cfg.FeedVSCurrency,
			PerPage:    cfg.FeedPerPage,
			Timeout:    cfg.FeedTimeout(),
			Retry:      retry,
			Metrics:    m,
		}, log)
		if !cfg.MirrorWrites {
			return client, nil, func() {}, nil
		}
		pool, closePool, err := openMirror(ctx, cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Msg("mirroring live feed into postgres")
		return repository.NewMirror(client, repository.NewMarketRepo(pool, cfg.FeedPerPage), log), pool, closePool, nil
	}
}

// openMirror connects to the market mirror database and creates its tables.
func openMirror(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, func(), error) {
	log.Info().Str("host", cfg.DBHost).Int("port", cfg.DBPort).Str("db", cfg.DBName).Msg("connecting to market mirror")
	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.TestConnection(ctx, pool, log); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	closePool := func() {
		pool.Close()
		log.Info().Str("component", "db").Msg("connection pool closed")
	}
	return pool, closePool, nil
}
