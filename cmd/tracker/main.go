package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"swingscan-go/internal/config"
	"swingscan-go/internal/evaluate"
	"swingscan-go/internal/exchange"
	"swingscan-go/internal/metrics"
	"swingscan-go/internal/scan"
	"swingscan-go/internal/store"
	"swingscan-go/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	once := flag.Bool("once", false, "run a single tracking pass and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := buildClient(cfg)
	repo := store.New(cfg.Store.ActivePath, cfg.Store.LogPath, cfg.Store.SnapshotPath)

	var feed *exchange.PriceFeed
	if cfg.Exchange.PriceFeed && cfg.Exchange.Provider != "stub" {
		feed = exchange.NewPriceFeed(util.Component(log, "feed"), nil)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("price feed stopped")
			}
		}()
	}

	// The tracker never evaluates new entries, so it carries no model.
	engine, err := scan.NewEngine(cfg.Scan, cfg.Track, client, feed, repo, evaluate.New(cfg.Scan.ConfidenceThreshold, nil), nil, util.Component(log, "track"))
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	runTrack := func() {
		if feed != nil {
			refreshFeed(repo, feed, log)
		}
		summary, err := engine.RunTrackingCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("tracking cycle failed")
			return
		}
		log.Info().
			Int("tracked", summary.Tracked).
			Int("wins", summary.Wins).
			Int("losses", summary.Losses).
			Int("deferred", summary.Deferred).
			Msg("tracking cycle done")
	}

	runTrack()
	if *once {
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.Track.IntervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			runTrack()
		}
	}
}

// refreshFeed points the websocket subscription at the current open set.
// The new list takes effect on the next reconnect; REST covers the gap.
func refreshFeed(repo *store.Repository, feed *exchange.PriceFeed, log zerolog.Logger) {
	active, err := repo.ListActive()
	if err != nil {
		log.Warn().Err(err).Msg("could not refresh feed symbols")
		return
	}
	symbols := make([]string, 0, len(active))
	for _, sig := range active {
		symbols = append(symbols, sig.Symbol)
	}
	feed.SetSymbols(symbols)
}

func buildClient(cfg *config.Config) exchange.Client {
	if cfg.Exchange.Provider == "stub" {
		return exchange.NewStubClient("BTCUSDT", "ETHUSDT", "SOLUSDT")
	}
	apiKey := cfg.Exchange.APIKey
	if env := os.Getenv("BINANCE_API_KEY"); env != "" {
		apiKey = env
	}
	apiSecret := cfg.Exchange.APISecret
	if env := os.Getenv("BINANCE_API_SECRET"); env != "" {
		apiSecret = env
	}
	return exchange.NewBinanceClient(apiKey, apiSecret, cfg.Exchange.Testnet)
}
