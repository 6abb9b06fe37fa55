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
	once := flag.Bool("once", false, "run a single scan cycle and exit")
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

	engine, err := scan.NewEngine(cfg.Scan, cfg.Track, client, nil, repo, eval, notifier, util.Component(log, "scan"))
	if err != nil {
		log.Fatal().Err(err).Msg("build scan engine")
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
			Int("skipped", summary.Skipped).
			Msg("scan cycle done")
	}

	runScan()
	if *once {
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.Scan.IntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			runScan()
		}
	}
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
