package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTransactionID generates the idempotency key shared with the gateway.
// The token is time-ordered (nanosecond prefix) with a random uuid suffix.
// Uniqueness is ultimately enforced by the payment ledger's unique index.
func NewTransactionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("tran_%d_%s", time.Now().UnixNano(), suffix)
}
