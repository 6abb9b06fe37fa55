package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultFeedBaseURL = "wss://fstream.binance.com"

// PriceFeed maintains a push-updated last-price cache from the Binance futures
// mark-price stream. The tracker consults it before falling back to REST, so a
// tracking pass over many instruments does not fan out into per-symbol polls.
type PriceFeed struct {
	log     zerolog.Logger
	baseURL string

	mu         sync.RWMutex
	symbols    []string
	lastPrices map[string]float64
}

// NewPriceFeed constructs a feed for the given symbols.
func NewPriceFeed(log zerolog.Logger, symbols []string) *PriceFeed {
	f := &PriceFeed{
		log:        log,
		baseURL:    defaultFeedBaseURL,
		lastPrices: make(map[string]float64),
	}
	f.SetSymbols(symbols)
	return f
}

// SetSymbols replaces the subscribed symbol list (deduplicated, sorted for
// determinism). Takes effect on the next (re)connect.
func (f *PriceFeed) SetSymbols(symbols []string) {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for sym := range unique {
		out = append(out, sym)
	}
	sort.Strings(out)

	f.mu.Lock()
	f.symbols = out
	f.mu.Unlock()
}

// Price returns the cached price for a symbol and whether one has arrived yet.
func (f *PriceFeed) Price(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	px, ok := f.lastPrices[symbol]
	return px, ok
}

func (f *PriceFeed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

const (
	initialFeedBackoff = time.Second
	maxFeedBackoff     = 30 * time.Second
	// A session that survived this long counts as healthy: the next
	// disconnect restarts the backoff ladder from the bottom.
	feedBackoffResetAfter = time.Minute
)

// nextBackoff picks the delay before the next reconnect attempt given the
// current delay and how long the last session stayed up.
func nextBackoff(current, session time.Duration) time.Duration {
	if session >= feedBackoffResetAfter {
		return initialFeedBackoff
	}
	return time.Duration(math.Min(float64(maxFeedBackoff), float64(current)*1.8))
}

// Run keeps the stream connected until the context is canceled, reconnecting
// with capped multiplicative backoff.
func (f *PriceFeed) Run(ctx context.Context) error {
	backoff := initialFeedBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		symbols := f.snapshotSymbols()
		if len(symbols) == 0 {
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		connectedAt := time.Now()
		if err := f.consumeStream(ctx, symbols); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("price feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, time.Since(connectedAt))
			continue
		}
		return nil
	}
}

type markPriceEnvelope struct {
	Stream string          `json:"stream"`
	Data   markPriceUpdate `json:"data"`
}

type markPriceUpdate struct {
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
	EventTime int64  `json:"E"`
}

func (f *PriceFeed) consumeStream(ctx context.Context, symbols []string) error {
	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym) + "@markPrice@1s"
	}
	url := fmt.Sprintf("%s/stream?streams=%s", f.baseURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Int("symbols", len(symbols)).Msg("connected mark price feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("price feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		symbol, price, ok := parseMarkPrice(message)
		if !ok {
			f.log.Debug().Msg("skipped malformed mark price message")
			continue
		}
		f.mu.Lock()
		f.lastPrices[symbol] = price
		f.mu.Unlock()
	}
}

// parseMarkPrice extracts (symbol, price) from one combined-stream message.
func parseMarkPrice(message []byte) (string, float64, bool) {
	var env markPriceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "", 0, false
	}
	if env.Data.Symbol == "" {
		return "", 0, false
	}
	px, err := strconv.ParseFloat(env.Data.MarkPrice, 64)
	if err != nil {
		return "", 0, false
	}
	return env.Data.Symbol, px, true
}
