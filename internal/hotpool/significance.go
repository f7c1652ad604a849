package hotpool

import "github.com/wallsentry/wallsentry/internal/model"

// significanceChecker decides whether a HotOrder update is worth a
// broadcast delta and a scheduled persistence flush. A change is
// significant iff the recommended weight moved by more than the
// configured threshold, OR current notional moved by more than the
// configured threshold relative to the previous value, OR the
// recommended category itself changed — settled to compare against
// notional, never raw quantity.
type significanceChecker struct {
	weightChangeThreshold   float64
	notionalChangeThreshold float64
}

func newSignificanceChecker(weightThreshold, notionalThreshold float64) *significanceChecker {
	return &significanceChecker{weightChangeThreshold: weightThreshold, notionalChangeThreshold: notionalThreshold}
}

// check compares the previous and current state of a HotOrder and
// returns whether the change crosses the significance bar.
func (s *significanceChecker) check(prevWeight, currWeight float64, prevCategory, currCategory model.Category, prevNotional, currNotional float64) bool {
	if absf(currWeight-prevWeight) > s.weightChangeThreshold {
		return true
	}
	if prevCategory != currCategory {
		return true
	}
	if prevNotional != 0 {
		if absf((currNotional-prevNotional)/prevNotional) > s.notionalChangeThreshold {
			return true
		}
	}
	return false
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
