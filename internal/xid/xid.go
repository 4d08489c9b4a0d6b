package xid

import (
	"github.com/google/uuid"
)

// New returns a prefixed unique id, e.g. "tx-7f8c...". The prefix keeps ids
// self-describing in logs and receipts.
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
