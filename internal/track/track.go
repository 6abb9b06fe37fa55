// Package track advances open signals against the latest price until they resolve.
//
// Evaluation is stateless per tick: every tick re-checks all levels from the
// original entry, so a poll that jumps across intermediate take-profits can
// under-report which levels were touched. That granularity limitation is part
// of the contract, not a bug to fix here.
package track

import (
	"time"

	"swingscan-go/internal/signal"
)

// Outcome is the result of one tracking tick for a single open signal.
type Outcome struct {
	Closed bool
	Result int // 1 win, 0 loss; meaningful only when Closed
	TPHit  int // 1..4 when Result is 1, 0 otherwise
}

// Advance evaluates one open signal against the current price.
//
// The reached take-profit is the longest contiguous prefix of TP1..TP4
// satisfied by the directional comparator; the walk stops at the first
// unreached level even if a later one would compare true. A reached stop-loss
// always dominates any take-profit satisfied in the same tick.
func Advance(sig signal.Signal, price float64) Outcome {
	long := sig.Direction == signal.Long

	reached := func(level float64) bool {
		if long {
			return price >= level
		}
		return price <= level
	}

	tpHit := 0
	for i, tp := range sig.TakeProfits {
		if !reached(tp) {
			break
		}
		tpHit = i + 1
	}

	slHit := false
	if long {
		slHit = price <= sig.StopLoss
	} else {
		slHit = price >= sig.StopLoss
	}

	if slHit {
		return Outcome{Closed: true, Result: 0, TPHit: 0}
	}
	if tpHit > 0 {
		return Outcome{Closed: true, Result: 1, TPHit: tpHit}
	}
	return Outcome{}
}

// Close builds the labeled record for a terminal outcome.
func Close(sig signal.Signal, out Outcome, exitedAt time.Time) signal.ClosedRecord {
	return signal.ClosedRecord{
		Signal:   sig,
		Result:   out.Result,
		TPHit:    out.TPHit,
		ExitedAt: exitedAt.Truncate(time.Second),
	}
}
