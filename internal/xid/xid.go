// Package xid mints the prefixed identifiers used for stored entities
// (prd-, cst-, loc-, ord-, lin-, audit-). The timestamp leads so IDs
// sort by creation time; the random tail keeps concurrent writers from
// colliding within the same nanosecond.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns "<prefix>-<unix nanos>-<12 hex chars>". If the entropy
// pool errors out the tail is dropped rather than failing the caller.
func New(prefix string) string {
	ts := time.Now().UnixNano()
	tail := make([]byte, 6)
	if _, err := rand.Read(tail); err != nil {
		return fmt.Sprintf("%s-%d", prefix, ts)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, ts, hex.EncodeToString(tail))
}
