package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"swingscan-go/internal/signal"
	"swingscan-go/internal/util"
)

// SnapshotMeta summarizes one scan cycle for the dashboard consumer.
type SnapshotMeta struct {
	Timestamp     string  `json:"timestamp"`
	TotalScanned  int     `json:"total_scanned"`
	Generated     int     `json:"generated"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Snapshot is the per-cycle scan output: the emitted signals plus meta.
type Snapshot struct {
	Signals []signal.Signal `json:"signals"`
	Meta    SnapshotMeta    `json:"meta"`
}

// WriteSnapshot atomically replaces the scan output file. AvgConfidence is the
// mean confidence of the emitted signals, or 0 when the cycle emitted none.
func (r *Repository) WriteSnapshot(sigs []signal.Signal, totalScanned int, now time.Time) error {
	if sigs == nil {
		sigs = []signal.Signal{}
	}
	avg := 0.0
	if len(sigs) > 0 {
		var sum float64
		for _, s := range sigs {
			sum += s.Confidence
		}
		avg = util.RoundN(sum/float64(len(sigs)), 2)
	}

	snap := Snapshot{
		Signals: sigs,
		Meta: SnapshotMeta{
			Timestamp:     now.Format(signal.TimeLayout),
			TotalScanned:  totalScanned,
			Generated:     len(sigs),
			AvgConfidence: avg,
		},
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFileAtomic(r.snapshotPath, data)
}

// ReadSnapshot loads the last written scan output, for dashboards and tests.
func (r *Repository) ReadSnapshot() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, r.snapshotPath, err)
	}
	return &snap, nil
}
