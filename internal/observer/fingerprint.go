package observer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wallsentry/wallsentry/internal/model"
)

// seq guarantees that two fingerprints minted in the same process
// never collide even if the clock hasn't advanced between them.
var seq uint64

// mintFingerprint builds the process-local identity of a tracked
// order from (symbol, exact price, exact quantity, side) plus a
// creation timestamp. Unlike a hash of price/quantity alone, two
// reappearances of the same size at the same price at different
// times mint distinct fingerprints — this is the resurrection rule.
func mintFingerprint(symbol string, side model.Side, price, qty decimal.Decimal, at time.Time) model.Fingerprint {
	n := atomic.AddUint64(&seq, 1)
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%d", symbol, side, price.String(), qty.String(), at.UnixNano(), n)
	sum := sha1.Sum([]byte(raw))
	return model.Fingerprint(hex.EncodeToString(sum[:])[:16])
}
