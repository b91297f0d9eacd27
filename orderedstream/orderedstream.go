// Package orderedstream implements the priority scheduler at the heart of
// the relay engine: jobs keyed by block number complete asynchronously and
// out of order, but results are only ever emitted in ascending key order.
// Without this, a slow early relay would stall later ones or let the
// persisted cursor advance past unfinished work.
//
// Stream is not safe for concurrent use: Insert and Poll must both be
// called from the same goroutine. Jobs themselves run on their own
// goroutines and report completion asynchronously, but mutating the
// entries slice is the caller's single-threaded job.
package orderedstream

import (
	"context"
)

// Job is anything that can be run to completion and polled for a result.
// Implementations run their work on their own goroutine (or are complete
// from the start); once done they keep reporting done=true.
type Job[V any] interface {
	// Poll reports whether the job has completed. It must be safe to call
	// repeatedly; once it returns true it must keep returning true with the
	// same result and error.
	Poll() (done bool, value V, err error)
}

// funcJob adapts a context-taking function into a Job by running it on its
// own goroutine immediately and remembering the result.
type funcJob[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// NewJob starts fn on a new goroutine and returns a Job that becomes ready
// once fn returns.
func NewJob[V any](ctx context.Context, fn func(context.Context) (V, error)) Job[V] {
	j := &funcJob[V]{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		j.val, j.err = fn(ctx)
	}()
	return j
}

// Completed returns a Job that is immediately ready with value v and a nil
// error — used for the Relay Stream's sentinel entries.
func Completed[V any](v V) Job[V] {
	j := &funcJob[V]{done: make(chan struct{})}
	close(j.done)
	j.val = v
	return j
}

func (j *funcJob[V]) Poll() (bool, V, error) {
	select {
	case <-j.done:
		return true, j.val, j.err
	default:
		var zero V
		return false, zero, nil
	}
}

type entry[K Ordered, V any] struct {
	key   K
	seq   uint64 // insertion order, breaks ties between equal keys
	job   Job[V]
	ready bool
	val   V
	err   error
}

// Ordered is the key constraint: anything with a total order, in practice
// a block number.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string
}

// Stream accepts (key, job) pairs and yields (key, result) pairs strictly
// in ascending key order, ties broken by insertion order, regardless of the
// order in which the underlying jobs complete.
//
// Poll is O(n) in the number of outstanding entries, which is acceptable
// because n is bounded by the number of logs in flight between two cursor
// advances.
type Stream[K Ordered, V any] struct {
	entries []entry[K, V]
	nextSeq uint64
}

// New returns an empty Stream.
func New[K Ordered, V any]() *Stream[K, V] {
	return &Stream[K, V]{}
}

// Insert schedules job to be yielded, keyed by key, once it completes and
// no entry with an equal or lower key remains outstanding. Non-blocking.
func (s *Stream[K, V]) Insert(key K, job Job[V]) {
	s.entries = append(s.entries, entry[K, V]{key: key, seq: s.nextSeq, job: job})
	s.nextSeq++
}

// Len reports the number of entries still held by the stream (ready or
// not); used by tests and by callers wanting to bound memory.
func (s *Stream[K, V]) Len() int {
	return len(s.entries)
}

// Poll advances every outstanding entry that hasn't completed yet, then
// emits the lowest-keyed ready entry iff no entry with the same or a lower
// key is still outstanding; among ready entries with equal keys, the one
// inserted first is emitted first. Returns ok=false if nothing can be
// emitted right now.
func (s *Stream[K, V]) Poll() (key K, value V, err error, ok bool) {
	var (
		haveMinNotReady bool
		minNotReady     K
		haveMinReady    bool
		minReady        K
		minReadySeq     uint64
		minReadyIdx     int
	)

	for i := range s.entries {
		e := &s.entries[i]
		if !e.ready {
			if done, val, jerr := e.job.Poll(); done {
				e.ready = true
				e.val = val
				e.err = jerr
			} else {
				if !haveMinNotReady || e.key < minNotReady {
					haveMinNotReady = true
					minNotReady = e.key
				}
			}
		}

		if e.ready && (!haveMinReady || e.key < minReady || (e.key == minReady && e.seq < minReadySeq)) {
			haveMinReady = true
			minReady = e.key
			minReadySeq = e.seq
			minReadyIdx = i
		}
	}

	if !haveMinReady {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, nil, false
	}

	if haveMinNotReady && minNotReady <= minReady {
		var zeroK K
		var zeroV V
		return zeroK, zeroV, nil, false
	}

	emitted := s.entries[minReadyIdx]
	last := len(s.entries) - 1
	s.entries[minReadyIdx] = s.entries[last]
	s.entries = s.entries[:last]

	return emitted.key, emitted.val, emitted.err, true
}
