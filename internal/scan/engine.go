// Package scan orchestrates the two externally triggerable cycles: scanning
// the instrument universe for new signals and tracking open signals to exit.
//
// Per-instrument work is embarrassingly parallel, so both cycles fan out over
// a bounded worker pool; all repository writes happen on the calling
// goroutine, which acts as the single writer.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"swingscan-go/internal/config"
	"swingscan-go/internal/evaluate"
	"swingscan-go/internal/exchange"
	"swingscan-go/internal/feature"
	"swingscan-go/internal/metrics"
	"swingscan-go/internal/notify"
	"swingscan-go/internal/signal"
	"swingscan-go/internal/store"
	"swingscan-go/internal/track"
)

// Engine wires the market data client, evaluator, tracker, and repository
// into runnable cycles.
type Engine struct {
	scanCfg  config.Scan
	trackCfg config.Track
	client   exchange.Client
	feed     *exchange.PriceFeed // optional push price cache
	repo     *store.Repository
	eval     evaluate.Evaluator
	notifier notify.Notifier
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewEngine builds an engine. feed may be nil; notifier may be nil for silence.
func NewEngine(
	scanCfg config.Scan,
	trackCfg config.Track,
	client exchange.Client,
	feed *exchange.PriceFeed,
	repo *store.Repository,
	eval evaluate.Evaluator,
	notifier notify.Notifier,
	log zerolog.Logger,
) (*Engine, error) {
	loc, err := time.LoadLocation(scanCfg.Timezone)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if scanCfg.Workers <= 0 {
		scanCfg.Workers = 1
	}
	if trackCfg.Workers <= 0 {
		trackCfg.Workers = 1
	}
	return &Engine{
		scanCfg:  scanCfg,
		trackCfg: trackCfg,
		client:   client,
		feed:     feed,
		repo:     repo,
		eval:     eval,
		notifier: notifier,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// ScanSummary reports what one scan cycle did.
type ScanSummary struct {
	TotalScanned int
	Generated    int
	Skipped      int
	Degraded     bool
}

// RunScanCycle evaluates the whole universe once and persists any new signals.
// It is idempotent: instruments with an open signal are skipped up front, and
// the duplicate guard in the repository backstops concurrent triggers.
func (e *Engine) RunScanCycle(ctx context.Context) (ScanSummary, error) {
	started := e.now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("scan").Observe(e.now().Sub(started).Seconds())
	}()
	now := started.In(e.loc)

	summary := ScanSummary{Degraded: e.eval.Degraded()}
	if summary.Degraded {
		// Once per cycle, not per instrument.
		e.log.Warn().Msg("confidence model unavailable, scanning in degraded mode")
	}

	instruments, err := e.client.ListInstruments(ctx)
	if err != nil {
		// Provider unreachable: an explicit empty cycle, never stale results.
		e.log.Error().Err(err).Msg("instrument universe unavailable, zero instruments scanned")
		if werr := e.repo.WriteSnapshot(nil, 0, now); werr != nil {
			e.log.Error().Err(werr).Msg("failed to write empty scan snapshot")
		}
		return summary, err
	}
	summary.TotalScanned = len(instruments)

	active, err := e.repo.ListActive()
	if err != nil {
		// Corrupt store is fatal for the cycle; write nothing partial.
		return summary, err
	}
	activeSet := make(map[string]struct{}, len(active))
	for _, sig := range active {
		activeSet[sig.Symbol] = struct{}{}
	}

	jobs := make(chan string)
	results := make(chan *signal.Signal)
	var skipped atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < e.scanCfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					skipped.Add(1)
					continue
				}
				sig := e.evaluateInstrument(ctx, symbol, now)
				if sig == nil {
					skipped.Add(1)
					continue
				}
				results <- sig
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, symbol := range instruments {
			if _, open := activeSet[symbol]; open {
				skipped.Add(1)
				continue
			}
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single writer: every persistence side effect happens here, in order.
	emitted := make([]signal.Signal, 0)
	for sig := range results {
		if err := e.repo.AddActive(*sig); err != nil {
			if errors.Is(err, store.ErrDuplicateActiveSignal) {
				e.log.Warn().Str("symbol", sig.Symbol).Msg("duplicate active signal rejected")
				continue
			}
			e.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("failed to persist active signal")
			continue
		}
		if err := e.repo.AppendLog(*sig); err != nil {
			e.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("failed to append signal log row")
		}
		metrics.SignalsEmitted.WithLabelValues(sig.Symbol, string(sig.Direction)).Inc()
		e.notifier.Notify(*sig)
		emitted = append(emitted, *sig)
		e.log.Info().
			Str("symbol", sig.Symbol).
			Str("direction", string(sig.Direction)).
			Float64("entry", sig.Entry).
			Float64("confidence", sig.Confidence).
			Msg("signal emitted")
	}

	summary.Generated = len(emitted)
	summary.Skipped = int(skipped.Load())
	metrics.InstrumentsScanned.Add(float64(summary.TotalScanned))

	if err := e.repo.WriteSnapshot(emitted, summary.TotalScanned, now); err != nil {
		e.log.Error().Err(err).Msg("failed to write scan snapshot")
		return summary, err
	}
	e.log.Info().
		Int("total_scanned", summary.TotalScanned).
		Int("generated", summary.Generated).
		Msg("scan cycle finished")
	return summary, nil
}

// evaluateInstrument fetches both timeframes and runs the gate for one symbol.
// All failure modes collapse to a skip; one instrument never aborts the cycle.
func (e *Engine) evaluateInstrument(ctx context.Context, symbol string, now time.Time) *signal.Signal {
	fastCandles, err := e.client.FetchCandles(ctx, symbol, e.scanCfg.FastInterval, e.scanCfg.CandleLimit)
	if err != nil {
		e.log.Debug().Err(err).Str("symbol", symbol).Msg("fast candles unavailable, skipping instrument")
		return nil
	}
	slowCandles, err := e.client.FetchCandles(ctx, symbol, e.scanCfg.SlowInterval, e.scanCfg.CandleLimit)
	if err != nil {
		e.log.Debug().Err(err).Str("symbol", symbol).Msg("slow candles unavailable, skipping instrument")
		return nil
	}
	if len(fastCandles) == 0 || len(slowCandles) == 0 {
		return nil
	}

	fast := feature.Compute(fastCandles)
	slow := feature.Compute(slowCandles)
	entry := fastCandles[len(fastCandles)-1].Close

	return e.eval.Evaluate(symbol, fast[len(fast)-1], slow[len(slow)-1], entry, now)
}

// TrackSummary reports what one tracking cycle did.
type TrackSummary struct {
	Tracked  int
	Wins     int
	Losses   int
	Deferred int // price unavailable this tick, left open
}

// RunTrackingCycle advances every open signal one tick and atomically replaces
// the active set with the survivors.
func (e *Engine) RunTrackingCycle(ctx context.Context) (TrackSummary, error) {
	started := e.now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("track").Observe(e.now().Sub(started).Seconds())
	}()
	now := started.In(e.loc)

	var summary TrackSummary
	active, err := e.repo.ListActive()
	if err != nil {
		return summary, err
	}
	summary.Tracked = len(active)
	if len(active) == 0 {
		return summary, nil
	}

	type priced struct {
		index int
		price float64
		ok    bool
	}

	jobs := make(chan int)
	results := make(chan priced)

	var wg sync.WaitGroup
	for i := 0; i < e.trackCfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				px, ok := e.currentPrice(ctx, active[idx].Symbol)
				results <- priced{index: idx, price: px, ok: ok}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range active {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	prices := make(map[int]priced, len(active))
	for res := range results {
		prices[res.index] = res
	}

	// Single writer: close records first, then swap the active set, so a
	// crash in between leaves the record closed and the idempotent close
	// guard absorbs the retry.
	remaining := make([]signal.Signal, 0, len(active))
	for idx, sig := range active {
		res, fetched := prices[idx]
		if !fetched || !res.ok {
			summary.Deferred++
			remaining = append(remaining, sig)
			continue
		}

		out := track.Advance(sig, res.price)
		if !out.Closed {
			remaining = append(remaining, sig)
			continue
		}

		rec := track.Close(sig, out, now)
		if err := e.repo.Close(rec); err != nil {
			e.log.Error().Err(err).Str("symbol", sig.Symbol).Msg("failed to record closed signal, retrying next tick")
			remaining = append(remaining, sig)
			continue
		}
		if out.Result == 1 {
			summary.Wins++
			metrics.SignalsClosed.WithLabelValues(sig.Symbol, "win").Inc()
			e.log.Info().Str("symbol", sig.Symbol).Int("tp", out.TPHit).Float64("price", res.price).Msg("take profit hit")
		} else {
			summary.Losses++
			metrics.SignalsClosed.WithLabelValues(sig.Symbol, "loss").Inc()
			e.log.Info().Str("symbol", sig.Symbol).Float64("price", res.price).Msg("stop loss hit")
		}
	}

	if err := e.repo.ReplaceActive(remaining); err != nil {
		return summary, err
	}
	e.log.Info().
		Int("tracked", summary.Tracked).
		Int("wins", summary.Wins).
		Int("losses", summary.Losses).
		Int("deferred", summary.Deferred).
		Msg("tracking cycle finished")
	return summary, nil
}

// currentPrice consults the push feed first, then the REST client.
func (e *Engine) currentPrice(ctx context.Context, symbol string) (float64, bool) {
	if e.feed != nil {
		if px, ok := e.feed.Price(symbol); ok {
			return px, true
		}
	}
	px, err := e.client.FetchPrice(ctx, symbol)
	if err != nil {
		e.log.Debug().Err(err).Str("symbol", symbol).Msg("price unavailable, deferring to next tick")
		return 0, false
	}
	return px, true
}
