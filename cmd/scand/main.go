// Command scand runs the scanner and the tracker in one long-lived process,
// sharing a single repository and, when enabled, the websocket price feed.
package main

import (
	"context"
	"errors"
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
	"swingscan-go/internal/model"
	"swingscan-go/internal/notify"
	"swingscan-go/internal/scan"
	"swingscan-go/internal/store"
	"swingscan-go/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
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
	eval := buildEvaluator(cfg, log)
	notifier := buildNotifier(cfg, log)

	var feed *exchange.PriceFeed
	if cfg.Exchange.PriceFeed && cfg.Exchange.Provider != "stub" {
		feed = exchange.NewPriceFeed(util.Component(log, "feed"), nil)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("price feed stopped")
			}
		}()
	}

	engine, err := scan.NewEngine(cfg.Scan, cfg.Track, client, feed, repo, eval, notifier, util.Component(log, "engine"))
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	runScan := func() {
		summary, err := engine.RunScanCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("scan cycle failed")
			return
		}
		log.Info().
			Int("total_scanned", summary.TotalScanned).
			Int("generated", summary.Generated).
			Msg("scan cycle done")
		if feed != nil {
			refreshFeed(repo, feed, log)
		}
	}

	runTrack := func() {
		summary, err := engine.RunTrackingCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("tracking cycle failed")
			return
		}
		if summary.Wins+summary.Losses > 0 && feed != nil {
			refreshFeed(repo, feed, log)
		}
		log.Debug().
			Int("tracked", summary.Tracked).
			Int("wins", summary.Wins).
			Int("losses", summary.Losses).
			Int("deferred", summary.Deferred).
			Msg("tracking cycle done")
	}

	runScan()

	scanTicker := time.NewTicker(time.Duration(cfg.Scan.IntervalMinutes) * time.Minute)
	defer scanTicker.Stop()
	trackTicker := time.NewTicker(time.Duration(cfg.Track.IntervalSeconds) * time.Second)
	defer trackTicker.Stop()

	log.Info().Msg("scand started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-scanTicker.C:
			runScan()
		case <-trackTicker.C:
			runTrack()
		}
	}
}

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

func buildEvaluator(cfg *config.Config, log zerolog.Logger) evaluate.Evaluator {
	m, err := model.Load(cfg.Model.Path)
	if err != nil {
		if errors.Is(err, model.ErrModelUnavailable) {
			log.Warn().Err(err).Msg("running without confidence model")
			return evaluate.New(cfg.Scan.ConfidenceThreshold, nil)
		}
		log.Fatal().Err(err).Msg("load model")
	}
	return evaluate.New(cfg.Scan.ConfidenceThreshold, m)
}

func buildNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	if !cfg.Email.Enabled {
		return notify.Nop{}
	}
	return notify.NewEmailNotifier(
		util.Component(log, "notify"),
		cfg.Email.Host,
		cfg.Email.Port,
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASS"),
		cfg.Email.To,
	)
}
