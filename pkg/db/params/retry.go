package params

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	databaseFirstWait  = 50 * time.Millisecond
	databaseWaitGrowth = 1.2
	databaseMaxWait    = 3 * time.Second
)

// DatabaseRetryStrategy returns the backoff used while the server is not
// accepting connections. A zero maxElapsed uses databaseMaxWait.
func DatabaseRetryStrategy(maxElapsed time.Duration) backoff.BackOff {
	if maxElapsed == 0 {
		maxElapsed = databaseMaxWait
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = databaseFirstWait
	b.Multiplier = databaseWaitGrowth
	b.RandomizationFactor = backoff.DefaultRandomizationFactor
	b.MaxElapsedTime = maxElapsed
	return b
}
