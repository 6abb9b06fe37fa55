// Package exchange hosts market data connectors for the futures venue.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swingscan-go/internal/metrics"
	"swingscan-go/internal/signal"
)

// ErrDataUnavailable is a transient provider failure. Callers retry inside the
// client; once retries are exhausted the instrument is skipped for the cycle.
var ErrDataUnavailable = errors.New("market data unavailable")

const (
	fetchRetries = 3
	fetchBackoff = time.Second
)

// Client is the narrow market data contract consumed by the scanner core.
type Client interface {
	// ListInstruments returns the tradable universe of instrument identifiers.
	ListInstruments(ctx context.Context) ([]string, error)
	// FetchCandles returns an ascending candle sequence for one instrument/interval.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error)
	// FetchPrice returns the current price for one instrument.
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

// withRetries runs fn up to fetchRetries times with a fixed backoff, wrapping
// the final failure in ErrDataUnavailable.
func withRetries(ctx context.Context, kind string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < fetchRetries; attempt++ {
		if attempt > 0 {
			metrics.FetchFailures.WithLabelValues(kind).Inc()
			select {
			case <-time.After(fetchBackoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, kind, ctx.Err())
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	metrics.FetchFailures.WithLabelValues(kind).Inc()
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, kind, lastErr)
}
