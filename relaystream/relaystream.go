// Package relaystream binds a confirmed log stream (logstream.Stream) to a
// per-log job factory through an orderedstream.Stream, producing an
// ordered stream of (block_number, result) tuples.
package relaystream

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/parity-relay/bridge/orderedstream"
)

// LogToJob builds the asynchronous job a single observed log should run.
type LogToJob[V any] func(log types.Log) orderedstream.Job[V]

// Result is one emitted (block_number, value) tuple. Ok is false for the
// sentinel entries inserted purely to advance the cursor past empty
// ranges; callers should still treat BlockNumber as the new high-water
// mark even when Ok is false.
type Result[V any] struct {
	BlockNumber uint64
	Value       V
	Ok          bool
}

// LogRange mirrors logstream.LogRange without importing it, to keep
// relaystream decoupled from the log-stream's own polling/timer machinery;
// any component yielding this shape (in practice logstream.Stream) can
// feed a Stream.
type LogRange struct {
	From uint64
	To   uint64
	Logs []types.Log
}

// Stream lifts a sequence of LogRanges into per-log jobs via factory, and
// drains them through an internal orderedstream.Stream so that results
// come out strictly in block order even though jobs complete out of order.
// Like the orderedstream.Stream it wraps, Ingest and Drain must both be
// called from the same goroutine.
type Stream[V any] struct {
	factory  LogToJob[V]
	ordered  *orderedstream.Stream[uint64, Result[V]]
	rangesIn <-chan LogRange
}

// New returns a Stream that turns the ranges read from ranges into ordered
// per-log job results, using factory to build one job per log.
func New[V any](ranges <-chan LogRange, factory LogToJob[V]) *Stream[V] {
	return &Stream[V]{
		factory:  factory,
		ordered:  orderedstream.New[uint64, Result[V]](),
		rangesIn: ranges,
	}
}

// Ingest folds one LogRange into the internal ordered stream: one job per
// log, plus a sentinel at `to` that completes immediately so the stream can
// always advance to at least `to` even when Logs is empty.
func (s *Stream[V]) Ingest(ctx context.Context, r LogRange) {
	for _, log := range r.Logs {
		blockNumber := log.BlockNumber
		job := s.factory(log)
		s.ordered.Insert(blockNumber, wrapOk[V](job))
	}
	s.ordered.Insert(r.To, orderedstream.Completed(Result[V]{BlockNumber: r.To, Ok: false}))
}

// wrapOk adapts a raw per-log Job[V] into a Job[Result[V]] so sentinels and
// real results share one ordered stream with a uniform Result type.
func wrapOk[V any](job orderedstream.Job[V]) orderedstream.Job[Result[V]] {
	return &okJob[V]{inner: job}
}

type okJob[V any] struct {
	inner orderedstream.Job[V]
}

func (j *okJob[V]) Poll() (bool, Result[V], error) {
	done, val, err := j.inner.Poll()
	if !done {
		var zero Result[V]
		return false, zero, nil
	}
	return true, Result[V]{Value: val, Ok: true}, err
}

// Run reads LogRanges off the channel passed to New and folds each into the
// stream via Ingest, until ctx is done or the channel is closed. Callers
// that drive their log stream through a channel rather than calling Ingest
// directly should run this on its own goroutine.
func (s *Stream[V]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-s.rangesIn:
			if !ok {
				return nil
			}
			s.Ingest(ctx, r)
		}
	}
}

// Drain pulls every result currently available from the internal ordered
// stream (non-blocking) and returns them in order. The caller is expected
// to call Drain again after the next LogRange has been Ingested.
func (s *Stream[V]) Drain() ([]Result[V], error) {
	var out []Result[V]
	for {
		key, val, err, ok := s.ordered.Poll()
		if !ok {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		val.BlockNumber = key
		out = append(out, val)
	}
}
