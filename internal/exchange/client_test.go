package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/adshao/go-binance/v2/futures"
)

func TestWithRetriesSucceedsAfterFailure(t *testing.T) {
	attempts := 0
	err := withRetries(context.Background(), "test", func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetriesExhaustsToDataUnavailable(t *testing.T) {
	attempts := 0
	err := withRetries(context.Background(), "test", func() error {
		attempts++
		return fmt.Errorf("down")
	})
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if attempts != fetchRetries {
		t.Fatalf("expected %d attempts, got %d", fetchRetries, attempts)
	}
}

func TestWithRetriesHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetries(ctx, "test", func() error { return fmt.Errorf("down") })
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestFilterPerpetuals(t *testing.T) {
	symbols := []futures.Symbol{
		{Symbol: "BTCUSDT", Status: "TRADING", ContractType: "PERPETUAL", QuoteAsset: "USDT"},
		{Symbol: "ETHBUSD", Status: "TRADING", ContractType: "PERPETUAL", QuoteAsset: "BUSD"},
		{Symbol: "BTCUSDT_250926", Status: "TRADING", ContractType: "CURRENT_QUARTER", QuoteAsset: "USDT"},
		{Symbol: "DEADUSDT", Status: "SETTLING", ContractType: "PERPETUAL", QuoteAsset: "USDT"},
		{Symbol: "SOLUSDT", Status: "TRADING", ContractType: "PERPETUAL", QuoteAsset: "USDT"},
	}
	got := filterPerpetuals(symbols)
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "SOLUSDT" {
		t.Fatalf("unexpected universe: %v", got)
	}
}

func TestParseKline(t *testing.T) {
	k := &futures.Kline{
		OpenTime: 1717200000000,
		Open:     "100.5",
		High:     "101.25",
		Low:      "99.75",
		Close:    "100.0",
		Volume:   "1234.5",
	}
	candle, err := parseKline("BTCUSDT", "1h", k)
	if err != nil {
		t.Fatalf("parseKline returned error: %v", err)
	}
	if candle.Open != 100.5 || candle.High != 101.25 || candle.Low != 99.75 || candle.Close != 100.0 || candle.Volume != 1234.5 {
		t.Fatalf("unexpected candle: %+v", candle)
	}
	if candle.Symbol != "BTCUSDT" || candle.Interval != "1h" {
		t.Fatalf("unexpected candle identity: %+v", candle)
	}

	k.Close = "oops"
	if _, err := parseKline("BTCUSDT", "1h", k); err == nil {
		t.Fatalf("expected parse error for malformed close")
	}
}

func TestStubClientFixtures(t *testing.T) {
	stub := NewStubClient("BTCUSDT", "ETHUSDT")

	instruments, err := stub.ListInstruments(context.Background())
	if err != nil || len(instruments) != 2 {
		t.Fatalf("unexpected universe: %v %v", instruments, err)
	}

	candles, err := stub.FetchCandles(context.Background(), "BTCUSDT", "1h", 250)
	if err != nil {
		t.Fatalf("FetchCandles returned error: %v", err)
	}
	if len(candles) != 250 {
		t.Fatalf("expected 250 synthetic candles, got %d", len(candles))
	}
	again, _ := stub.FetchCandles(context.Background(), "BTCUSDT", "1h", 250)
	if candles[100] != again[100] {
		t.Fatalf("synthetic series must be deterministic")
	}

	if _, err := stub.FetchPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable without fixture, got %v", err)
	}
	stub.SetPrice("BTCUSDT", 101.5)
	px, err := stub.FetchPrice(context.Background(), "BTCUSDT")
	if err != nil || px != 101.5 {
		t.Fatalf("unexpected price: %v %v", px, err)
	}
	stub.ClearPrice("BTCUSDT")
	if _, err := stub.FetchPrice(context.Background(), "BTCUSDT"); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable after clear, got %v", err)
	}
}
