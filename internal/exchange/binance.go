package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"swingscan-go/internal/signal"
)

// BinanceClient serves the futures market data contract from Binance USDT-M endpoints.
type BinanceClient struct {
	futures *futures.Client
}

// NewBinanceClient builds a futures market data client. Keys may be empty for
// the public read-only endpoints this scanner uses.
func NewBinanceClient(apiKey, apiSecret string, testnet bool) *BinanceClient {
	futures.UseTestnet = testnet
	return &BinanceClient{futures: futures.NewClient(apiKey, apiSecret)}
}

// ListInstruments returns all actively trading USDT-quoted perpetual contracts.
func (c *BinanceClient) ListInstruments(ctx context.Context) ([]string, error) {
	var info *futures.ExchangeInfo
	err := withRetries(ctx, "exchange_info", func() error {
		var err error
		info, err = c.futures.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return filterPerpetuals(info.Symbols), nil
}

// filterPerpetuals keeps the tradable universe: TRADING status, PERPETUAL
// contract type, USDT quote.
func filterPerpetuals(symbols []futures.Symbol) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s.Status != "TRADING" {
			continue
		}
		if s.ContractType != "PERPETUAL" || s.QuoteAsset != "USDT" {
			continue
		}
		out = append(out, s.Symbol)
	}
	return out
}

// FetchCandles returns up to limit candles for the instrument/interval, oldest first.
func (c *BinanceClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	var klines []*futures.Kline
	err := withRetries(ctx, "klines", func() error {
		var err error
		klines, err = c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	candles := make([]signal.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := parseKline(symbol, interval, k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrDataUnavailable, symbol, interval, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(symbol, interval string, k *futures.Kline) (signal.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return signal.Candle{}, fmt.Errorf("parse open: %v", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return signal.Candle{}, fmt.Errorf("parse high: %v", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return signal.Candle{}, fmt.Errorf("parse low: %v", err)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return signal.Candle{}, fmt.Errorf("parse close: %v", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return signal.Candle{}, fmt.Errorf("parse volume: %v", err)
	}
	return signal.Candle{
		Symbol:   symbol,
		Interval: interval,
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
	}, nil
}

// FetchPrice returns the latest ticker price for the instrument.
func (c *BinanceClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*futures.SymbolPrice
	err := withRetries(ctx, "ticker_price", func() error {
		var err error
		prices, err = c.futures.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: no price for %s", ErrDataUnavailable, symbol)
	}
	px, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse price for %s: %v", ErrDataUnavailable, symbol, err)
	}
	return px, nil
}
