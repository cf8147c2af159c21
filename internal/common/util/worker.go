package util

import (
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

var (
	entropy      = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	entropyMutex sync.Mutex
)

// NewWorkerID names this process in logs: the host name followed by a lower-case ULID, so ids
// from one host sort by start time.
func NewWorkerID() string {
	entropyMutex.Lock()
	id := strings.ToLower(ulid.MustNew(ulid.Now(), entropy).String())
	entropyMutex.Unlock()

	host, err := os.Hostname()
	if err != nil || host == "" {
		return id
	}
	return host + "-" + id
}
