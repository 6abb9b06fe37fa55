package scan

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"swingscan-go/internal/config"
	"swingscan-go/internal/evaluate"
	"swingscan-go/internal/exchange"
	"swingscan-go/internal/model"
	"swingscan-go/internal/notify"
	"swingscan-go/internal/signal"
	"swingscan-go/internal/store"
)

type fixedScorer struct{ prob float64 }

func (f fixedScorer) Score(_ [model.FeatureCount]float64) float64 { return f.prob }

type recordingNotifier struct {
	mu   sync.Mutex
	sigs []signal.Signal
}

func (r *recordingNotifier) Notify(sig signal.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig)
}

// bullishCandles builds a trending series whose final snapshot clears every
// rule gate: rising EMAs, RSI around 70, wide ranges, and a closing volume spike.
func bullishCandles(symbol, interval string, n int) []signal.Candle {
	candles := make([]signal.Candle, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	px := 100.0
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%3 == 0 {
				px -= 0.3
			} else {
				px += 0.4
			}
		}
		vol := 1000.0
		if i == n-1 {
			vol = 2500.0
		}
		candles[i] = signal.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     px,
			High:     px + 1.5,
			Low:      px - 1.5,
			Close:    px,
			Volume:   vol,
		}
	}
	return candles
}

func newTestEngine(t *testing.T, client exchange.Client, eval evaluate.Evaluator, notifier notify.Notifier) (*Engine, *store.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo := store.New(
		filepath.Join(dir, "active_signals.json"),
		filepath.Join(dir, "signals_log.csv"),
		filepath.Join(dir, "signals.json"),
	)
	scanCfg := config.Scan{
		FastInterval:        "1h",
		SlowInterval:        "4h",
		CandleLimit:         260,
		Workers:             4,
		ConfidenceThreshold: 0.97,
		Timezone:            "UTC",
	}
	trackCfg := config.Track{Workers: 4}
	engine, err := NewEngine(scanCfg, trackCfg, client, nil, repo, eval, notifier, zerolog.Nop())
	require.NoError(t, err)
	return engine, repo
}

func TestRunScanCycleEmitsSignal(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT", "BBBUSDT")
	stub.SetCandles("AAAUSDT", "1h", bullishCandles("AAAUSDT", "1h", 260))
	stub.SetCandles("AAAUSDT", "4h", bullishCandles("AAAUSDT", "4h", 260))
	// BBBUSDT keeps the default synthetic series, which fails the rvol gate.

	notifier := &recordingNotifier{}
	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, fixedScorer{prob: 0.99}), notifier)

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalScanned)
	require.Equal(t, 1, summary.Generated)
	require.False(t, summary.Degraded)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	sig := active[0]
	require.Equal(t, "AAAUSDT", sig.Symbol)
	require.Equal(t, signal.Long, sig.Direction)
	require.Equal(t, 99.0, sig.Confidence)

	// Levels honor the ordering invariant relative to entry.
	require.Greater(t, sig.TakeProfits[0], sig.Entry)
	require.Greater(t, sig.TakeProfits[3], sig.TakeProfits[0])
	require.Less(t, sig.StopLoss, sig.Entry)

	require.Len(t, notifier.sigs, 1)

	snap, err := repo.ReadSnapshot()
	require.NoError(t, err)
	require.Equal(t, 2, snap.Meta.TotalScanned)
	require.Equal(t, 1, snap.Meta.Generated)
	require.Equal(t, 99.0, snap.Meta.AvgConfidence)

	// The log row exists with a blank outcome.
	rows, err := repo.ResolvedRows()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRunScanCycleSkipsActiveInstrument(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	stub.SetCandles("AAAUSDT", "1h", bullishCandles("AAAUSDT", "1h", 260))
	stub.SetCandles("AAAUSDT", "4h", bullishCandles("AAAUSDT", "4h", 260))

	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, fixedScorer{prob: 0.99}), nil)

	first, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Generated)

	// Re-entry on an already-active instrument is forbidden.
	second, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Generated)
	require.Equal(t, 1, second.Skipped)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRunScanCycleDegradedMode(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	stub.SetCandles("AAAUSDT", "1h", bullishCandles("AAAUSDT", "1h", 260))
	stub.SetCandles("AAAUSDT", "4h", bullishCandles("AAAUSDT", "4h", 260))

	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, nil), nil)

	summary, err := engine.RunScanCycle(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Degraded)
	require.Equal(t, 1, summary.Generated)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Equal(t, evaluate.DegradedConfidence, active[0].Confidence)
}

type downClient struct{ exchange.Client }

func (downClient) ListInstruments(context.Context) ([]string, error) {
	return nil, exchange.ErrDataUnavailable
}

func TestRunScanCycleProviderDown(t *testing.T) {
	engine, repo := newTestEngine(t, downClient{}, evaluate.New(0.97, fixedScorer{prob: 0.99}), nil)

	summary, err := engine.RunScanCycle(context.Background())
	require.ErrorIs(t, err, exchange.ErrDataUnavailable)
	require.Equal(t, 0, summary.TotalScanned)

	// The empty cycle is explicit: a fresh snapshot with zero scanned.
	snap, snapErr := repo.ReadSnapshot()
	require.NoError(t, snapErr)
	require.Equal(t, 0, snap.Meta.TotalScanned)
	require.Empty(t, snap.Signals)
}

func seedActive(t *testing.T, repo *store.Repository, sig signal.Signal) {
	t.Helper()
	require.NoError(t, repo.AddActive(sig))
	require.NoError(t, repo.AppendLog(sig))
}

func openLong(symbol string) signal.Signal {
	return signal.Signal{
		Symbol:      symbol,
		Direction:   signal.Long,
		Entry:       100.0,
		TakeProfits: [4]float64{103.0, 105.0, 108.0, 110.0},
		StopLoss:    98.5,
		Confidence:  97.5,
		CreatedAt:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunTrackingCycleClosesWin(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, nil), nil)
	seedActive(t, repo, openLong("AAAUSDT"))
	stub.SetPrice("AAAUSDT", 105.5)

	summary, err := engine.RunTrackingCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Tracked)
	require.Equal(t, 1, summary.Wins)
	require.Equal(t, 0, summary.Losses)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Empty(t, active)

	rows, err := repo.ResolvedRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "1", rows[0][17])
	require.Equal(t, "TP2", rows[0][18])
}

func TestRunTrackingCycleClosesLoss(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, nil), nil)
	seedActive(t, repo, openLong("AAAUSDT"))
	stub.SetPrice("AAAUSDT", 98.0)

	summary, err := engine.RunTrackingCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Losses)

	rows, err := repo.ResolvedRows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "0", rows[0][17])
	require.Equal(t, "", rows[0][18])
}

func TestRunTrackingCycleDefersWithoutPrice(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, nil), nil)
	seedActive(t, repo, openLong("AAAUSDT"))
	// No stub price: the fetch fails and the position must stay open.

	summary, err := engine.RunTrackingCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Deferred)
	require.Equal(t, 0, summary.Wins)
	require.Equal(t, 0, summary.Losses)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRunTrackingCycleKeepsOpenBetweenLevels(t *testing.T) {
	stub := exchange.NewStubClient("AAAUSDT")
	engine, repo := newTestEngine(t, stub, evaluate.New(0.97, nil), nil)
	seedActive(t, repo, openLong("AAAUSDT"))
	stub.SetPrice("AAAUSDT", 101.0)

	summary, err := engine.RunTrackingCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.Wins+summary.Losses)

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
}
