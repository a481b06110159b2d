package utils

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var ulidEntropy = ulid.Monotonic(rand.Reader, 0)

// NewUlid returns a lowercase ULID. Run ids are ULIDs so audit records
// and recorded deploy states sort chronologically by id alone.
func NewUlid() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String())
}
