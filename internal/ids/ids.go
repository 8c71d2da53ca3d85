package ids

import (
	cryptorand "crypto/rand"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewID returns a lexically sortable ULID string.
func NewID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// NewToken returns a short lowercase join token. Its characters come from
// the entropy half of a ULID drawn straight from crypto/rand, so tokens
// minted in the same millisecond share nothing guessable. Tokens are not
// guaranteed unique; callers check for collisions.
func NewToken() string {
	id := ulid.MustNew(ulid.Now(), cryptorand.Reader).String()
	return strings.ToLower(id[len(id)-tokenLen:])
}

const tokenLen = 8
