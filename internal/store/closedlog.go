package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"swingscan-go/internal/signal"
)

// logHeader is the exact closed-log schema consumed by the trainer.
var logHeader = []string{
	"symbol", "type", "entry", "tp1", "tp2", "tp3", "tp4", "sl",
	"ema_diff", "rsi", "macd_hist", "adx", "atr", "atr_ratio", "rvol",
	"confidence", "signal_time", "result", "tp_hit", "exit_time",
}

const (
	colSymbol = iota
	colType
	colEntry
	colTP1
	colTP2
	colTP3
	colTP4
	colSL
	colEmaDiff
	colRSI
	colMACDHist
	colADX
	colATR
	colATRRatio
	colRVol
	colConfidence
	colSignalTime
	colResult
	colTPHit
	colExitTime
)

// AppendLog records a freshly emitted signal in the closed log with a blank
// outcome. Re-appending the same identity key is a no-op.
func (r *Repository) AppendLog(sig signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.loadLog()
	if err != nil {
		return err
	}
	key := logKey(sig.Symbol, sig.SignalTime())
	for _, row := range rows {
		if logKey(row[colSymbol], row[colSignalTime]) == key {
			return nil
		}
	}
	rows = append(rows, logRow(sig, "", "", ""))
	return r.writeLog(rows)
}

// Close resolves the identity key's row with its labeled outcome. Idempotent:
// a key whose result is already set is left untouched, and a missing row is
// appended whole so retries after a lost append still land exactly once.
func (r *Repository) Close(rec signal.ClosedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.loadLog()
	if err != nil {
		return err
	}

	result := strconv.Itoa(rec.Result)
	tpHit := ""
	if rec.Result == 1 && rec.TPHit >= 1 {
		tpHit = fmt.Sprintf("TP%d", rec.TPHit)
	}
	exitTime := rec.ExitedAt.Format(signal.TimeLayout)

	key := logKey(rec.Signal.Symbol, rec.Signal.SignalTime())
	for i, row := range rows {
		if logKey(row[colSymbol], row[colSignalTime]) != key {
			continue
		}
		if row[colResult] != "" {
			return nil // already resolved
		}
		row[colResult] = result
		row[colTPHit] = tpHit
		row[colExitTime] = exitTime
		rows[i] = row
		return r.writeLog(rows)
	}

	rows = append(rows, logRow(rec.Signal, result, tpHit, exitTime))
	return r.writeLog(rows)
}

// ResolvedRows returns the labeled rows of the closed log. The retraining
// pipeline consumes the CSV file directly; this accessor is for in-process
// inspection of the labeled history.
func (r *Repository) ResolvedRows() ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.loadLog()
	if err != nil {
		return nil, err
	}
	resolved := make([][]string, 0, len(rows))
	for _, row := range rows {
		if row[colResult] != "" {
			resolved = append(resolved, row)
		}
	}
	return resolved, nil
}

func logRow(sig signal.Signal, result, tpHit, exitTime string) []string {
	return []string{
		sig.Symbol,
		string(sig.Direction),
		formatPrice(sig.Entry),
		formatPrice(sig.TakeProfits[0]),
		formatPrice(sig.TakeProfits[1]),
		formatPrice(sig.TakeProfits[2]),
		formatPrice(sig.TakeProfits[3]),
		formatPrice(sig.StopLoss),
		formatFeature(sig.EmaDiff),
		formatFeature(sig.RSI),
		formatFeature(sig.MACDHist),
		formatFeature(sig.ADX),
		formatFeature(sig.ATR),
		formatFeature(sig.ATRRatio),
		formatFeature(sig.RVol),
		formatFeature(sig.Confidence),
		sig.SignalTime(),
		result,
		tpHit,
		exitTime,
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatFeature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func logKey(symbol, signalTime string) string {
	return symbol + "|" + signalTime
}

func (r *Repository) loadLog() ([][]string, error) {
	file, err := os.Open(r.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open closed log: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, r.logPath, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if strings.Join(records[0], ",") != strings.Join(logHeader, ",") {
		return nil, fmt.Errorf("%w: %s: unexpected header", ErrCorruptStore, r.logPath)
	}
	for _, row := range records[1:] {
		if len(row) != len(logHeader) {
			return nil, fmt.Errorf("%w: %s: short row", ErrCorruptStore, r.logPath)
		}
	}
	return records[1:], nil
}

func (r *Repository) writeLog(rows [][]string) error {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if err := writer.Write(logHeader); err != nil {
		return fmt.Errorf("encode log header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("encode log rows: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush log rows: %w", err)
	}
	return writeFileAtomic(r.logPath, []byte(sb.String()))
}
