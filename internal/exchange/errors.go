package exchange

import "fmt"

// TransientError wraps a venue failure that is worth retrying with
// backoff (timeouts, 5xx, rate-limit responses).
type TransientError struct {
	Symbol string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient venue error for %s: %v", e.Symbol, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a venue failure that will never succeed on
// retry (malformed symbol, delisted instrument, 4xx other than
// rate-limit). The symbol should be dropped from the universe.
type PermanentError struct {
	Symbol string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent venue error for %s: %v", e.Symbol, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// PrecisionError signals that a price comparison could not be
// normalized (missing/invalid precision). Callers must treat this as
// a not-found result, which pushes the order down the death path.
type PrecisionError struct {
	Symbol string
	Err    error
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("precision error for %s: %v", e.Symbol, e.Err)
}

func (e *PrecisionError) Unwrap() error { return e.Err }
