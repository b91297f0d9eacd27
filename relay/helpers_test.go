package relay

import (
	"testing"
	"time"

	"github.com/parity-relay/bridge/orderedstream"
)

// waitForResult polls job until it completes, failing the test if it
// doesn't within a generous deadline. The relay jobs under test run their
// work on a background goroutine (orderedstream.NewJob), so tests observe
// completion the same way the Ordered Stream does: by polling.
func waitForResult[V any](t *testing.T, job orderedstream.Job[V]) V {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done, val, err := job.Poll()
		if done {
			if err != nil {
				t.Fatalf("job failed: %v", err)
			}
			return val
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job never completed")
	var zero V
	return zero
}
