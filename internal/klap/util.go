package klap

import (
	"crypto/rand"
	"time"
)

// randRead and timeNow are indirected so tests can make seed generation
// and session expiry deterministic without touching global state used
// elsewhere in the process.
var (
	randRead = rand.Read
	timeNow  = time.Now
)
