package orderedstream

import (
	"context"
	"math/rand"
	"testing"
	"time"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// TestFairness checks that a job keyed 4 which completes quickly still
// waits behind a job keyed 2 that completes more slowly.
func TestFairness(t *testing.T) {
	s := New[int, string]()

	s.Insert(4, NewJob(context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "four", nil
	}))
	s.Insert(2, NewJob(context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "two", nil
	}))

	var emitted []int
	deadline := time.Now().Add(2 * time.Second)
	for len(emitted) < 2 && time.Now().Before(deadline) {
		key, _, err, ok := s.Poll()
		require.NoError(t, err)
		if ok {
			emitted = append(emitted, key)
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	require.Equal(t, []int{2, 4}, emitted)
}

// TestTiesPreserveInsertionOrder checks the tie-break clause: two entries
// with equal keys emit in the order they were inserted.
func TestTiesPreserveInsertionOrder(t *testing.T) {
	s := New[int, string]()
	s.Insert(1, Completed("a"))
	s.Insert(1, Completed("b"))

	_, v1, _, ok := s.Poll()
	require.True(t, ok)
	require.Equal(t, "a", v1)

	_, v2, _, ok := s.Poll()
	require.True(t, ok)
	require.Equal(t, "b", v2)
}

// TestEmissionNeverDecreasesKey fuzzes random key/delay sequences and
// checks the ascending-emission-order invariant over many trials, beyond
// the single worked TestFairness example.
func TestEmissionNeverDecreasesKey(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(5, 30)

	for trial := 0; trial < 20; trial++ {
		var keys []int
		f.Fuzz(&keys)

		s := New[int, int]()
		for _, k := range keys {
			delay := time.Duration(rand.Intn(3)) * time.Millisecond
			key := k
			s.Insert(key, NewJob(context.Background(), func(ctx context.Context) (int, error) {
				time.Sleep(delay)
				return key, nil
			}))
		}

		var emitted []int
		deadline := time.Now().Add(2 * time.Second)
		for len(emitted) < len(keys) && time.Now().Before(deadline) {
			key, _, err, ok := s.Poll()
			require.NoError(t, err)
			if ok {
				emitted = append(emitted, key)
			}
		}

		require.Len(t, emitted, len(keys))
		for i := 1; i < len(emitted); i++ {
			require.LessOrEqualf(t, emitted[i-1], emitted[i], "trial %d: emission order %v from input %v", trial, emitted, keys)
		}
	}
}

// TestJobErrorPropagates checks that a failure of any job propagates as
// the stream's error.
func TestJobErrorPropagates(t *testing.T) {
	s := New[int, string]()
	wantErr := errBoom
	s.Insert(1, NewJob(context.Background(), func(ctx context.Context) (string, error) {
		return "", wantErr
	}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, _, err, ok := s.Poll()
		if ok {
			require.ErrorIs(t, err, wantErr)
			return
		}
	}
	t.Fatal("job never became ready")
}

var errBoom = fuzzError("boom")

type fuzzError string

func (e fuzzError) Error() string { return string(e) }
