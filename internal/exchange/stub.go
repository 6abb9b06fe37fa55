package exchange

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"swingscan-go/internal/signal"
)

// StubClient serves deterministic synthetic market data, useful for tests and
// offline work. Fixtures set explicitly win over the generated series; a
// symbol without a fixture price reports ErrDataUnavailable, mimicking a
// provider outage for that instrument.
type StubClient struct {
	mu          sync.RWMutex
	instruments []string
	candles     map[string][]signal.Candle
	prices      map[string]float64
}

// NewStubClient builds a stub over a fixed instrument universe.
func NewStubClient(instruments ...string) *StubClient {
	return &StubClient{
		instruments: append([]string(nil), instruments...),
		candles:     make(map[string][]signal.Candle),
		prices:      make(map[string]float64),
	}
}

// SetCandles pins the candle fixture for one instrument/interval.
func (s *StubClient) SetCandles(symbol, interval string, candles []signal.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol+"@"+interval] = append([]signal.Candle(nil), candles...)
}

// SetPrice pins the current price for one instrument.
func (s *StubClient) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// ClearPrice removes the fixture price, simulating a transient outage.
func (s *StubClient) ClearPrice(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

// ListInstruments returns the configured universe.
func (s *StubClient) ListInstruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.instruments...), nil
}

// FetchCandles returns the fixture when present, otherwise a deterministic
// synthetic series seeded by the symbol name.
func (s *StubClient) FetchCandles(_ context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	s.mu.RLock()
	fixture, ok := s.candles[symbol+"@"+interval]
	s.mu.RUnlock()
	if ok {
		return append([]signal.Candle(nil), fixture...), nil
	}
	return syntheticSeries(symbol, interval, limit), nil
}

// FetchPrice returns the fixture price or ErrDataUnavailable.
func (s *StubClient) FetchPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	px, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: no stub price for %s", ErrDataUnavailable, symbol)
	}
	return px, nil
}

func syntheticSeries(symbol, interval string, limit int) []signal.Candle {
	if limit <= 0 {
		limit = 250
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	base := 50 + float64(h.Sum32()%1000)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	candles := make([]signal.Candle, limit)
	for i := range candles {
		// Gentle drift plus a wave so every indicator warms up with
		// both gains and losses.
		px := base + 0.05*float64(i) + 2*math.Sin(float64(i)/9)
		candles[i] = signal.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     px * 0.999,
			High:     px * 1.005,
			Low:      px * 0.995,
			Close:    px,
			Volume:   1000 + float64((int(h.Sum32())+i)%500),
		}
	}
	return candles
}
