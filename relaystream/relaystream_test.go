package relaystream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/parity-relay/bridge/orderedstream"
)

func logAt(block uint64) types.Log {
	return types.Log{BlockNumber: block}
}

// TestIngestEmitsSentinelOnEmptyRange checks that an empty range still
// advances the cursor to `to` via a completed sentinel with Ok=false.
func TestIngestEmitsSentinelOnEmptyRange(t *testing.T) {
	s := New[int](nil, func(l types.Log) orderedstream.Job[int] {
		return orderedstream.Completed(0)
	})
	s.Ingest(context.Background(), LogRange{From: 1, To: 10})

	results, err := s.Drain()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Ok)
	require.Equal(t, uint64(10), results[0].BlockNumber)
}

// TestIngestOrdersResultsByBlockNumber checks the core contract: logs
// within a range, plus the range's own sentinel, come out in ascending
// block-number order regardless of job completion order.
func TestIngestOrdersResultsByBlockNumber(t *testing.T) {
	s := New[string](nil, func(l types.Log) orderedstream.Job[string] {
		return orderedstream.Completed(blockLabel(l.BlockNumber))
	})
	s.Ingest(context.Background(), LogRange{
		From: 1,
		To:   10,
		Logs: []types.Log{logAt(7), logAt(3), logAt(5)},
	})

	results, err := s.Drain()
	require.NoError(t, err)
	require.Len(t, results, 4)

	var got []uint64
	for _, r := range results {
		got = append(got, r.BlockNumber)
	}
	require.Equal(t, []uint64{3, 5, 7, 10}, got)
	require.True(t, results[0].Ok)
	require.False(t, results[3].Ok) // the sentinel at `to`
}

// TestIngestPropagatesJobError ensures a failing per-log job surfaces
// through Drain rather than being silently dropped.
func TestIngestPropagatesJobError(t *testing.T) {
	wantErr := errors.New("boom")
	s := New[int](nil, func(l types.Log) orderedstream.Job[int] {
		return orderedstream.NewJob(context.Background(), func(context.Context) (int, error) {
			return 0, wantErr
		})
	})
	s.Ingest(context.Background(), LogRange{From: 1, To: 1, Logs: []types.Log{logAt(1)}})

	err := drainUntilError(t, s)
	require.ErrorIs(t, err, wantErr)
}

// drainUntilError polls Drain until it reports an error or the deadline
// passes, since a failing job completes asynchronously on its own
// goroutine.
func drainUntilError(t *testing.T, s *Stream[int]) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Drain(); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job never failed")
	return nil
}

func blockLabel(n uint64) string {
	if n == 0 {
		return "zero"
	}
	return "block"
}
