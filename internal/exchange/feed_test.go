package exchange

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseMarkPrice(t *testing.T) {
	message := []byte(`{"stream":"btcusdt@markPrice@1s","data":{"e":"markPriceUpdate","E":1717200000123,"s":"BTCUSDT","p":"64321.1200"}}`)
	symbol, price, ok := parseMarkPrice(message)
	if !ok {
		t.Fatalf("expected message to parse")
	}
	if symbol != "BTCUSDT" || price != 64321.12 {
		t.Fatalf("unexpected parse result: %s %v", symbol, price)
	}

	if _, _, ok := parseMarkPrice([]byte(`{"stream":"x","data":{"s":"BTCUSDT","p":"abc"}}`)); ok {
		t.Fatalf("expected malformed price to be rejected")
	}
	if _, _, ok := parseMarkPrice([]byte(`not json`)); ok {
		t.Fatalf("expected malformed json to be rejected")
	}
}

func TestPriceFeedCache(t *testing.T) {
	feed := NewPriceFeed(zerolog.Nop(), []string{" BTCUSDT ", "ETHUSDT", "BTCUSDT", ""})

	symbols := feed.snapshotSymbols()
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Fatalf("unexpected symbol set: %v", symbols)
	}

	if _, ok := feed.Price("BTCUSDT"); ok {
		t.Fatalf("expected empty cache before any update")
	}

	feed.mu.Lock()
	feed.lastPrices["BTCUSDT"] = 64000.5
	feed.mu.Unlock()

	px, ok := feed.Price("BTCUSDT")
	if !ok || px != 64000.5 {
		t.Fatalf("unexpected cached price: %v %v", px, ok)
	}
}

func TestNextBackoff(t *testing.T) {
	// Quick failures climb the ladder until the cap.
	b := initialFeedBackoff
	b = nextBackoff(b, 0)
	if b != 1800*time.Millisecond {
		t.Fatalf("unexpected second delay: %v", b)
	}
	for i := 0; i < 20; i++ {
		b = nextBackoff(b, 0)
	}
	if b != maxFeedBackoff {
		t.Fatalf("expected backoff to cap at %v, got %v", maxFeedBackoff, b)
	}

	// A session that stayed up resets the ladder, so a later hiccup does not
	// reconnect at the cap.
	if got := nextBackoff(maxFeedBackoff, 2*time.Minute); got != initialFeedBackoff {
		t.Fatalf("expected reset to %v after a healthy session, got %v", initialFeedBackoff, got)
	}
	if got := nextBackoff(maxFeedBackoff, time.Second); got != maxFeedBackoff {
		t.Fatalf("expected a quick failure to stay at the cap, got %v", got)
	}
}
