// Package logstream turns an unreliable, re-organising chain into a
// deterministic, ordered sequence of confirmed log ranges.
package logstream

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// ChainReader is the subset of chainclient.Client the log stream needs.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Options configures a Stream.
type Options struct {
	Address         common.Address
	Topic           common.Hash
	Confirmations   uint64
	PollInterval    time.Duration
	After           uint64 // last_checked_block at startup (the deployed-at or persisted cursor)
	Name            string // for logging, e.g. "main/Deposit"
}

// LogRange is a contiguous, half-open-from-the-previous-range batch of
// confirmed logs: every log in Logs has BlockNumber in [From, To], and the
// next range's From is always this range's To+1.
type LogRange struct {
	From uint64
	To   uint64
	Logs []types.Log
}

// Stream yields LogRanges that partition (after, tip-confirmations] into
// contiguous, disjoint intervals, advancing in block order. Stream is
// driven cooperatively: Next blocks (via its ctx) until the next range is
// ready, never skipping a poll tick's back-pressure (the caller must
// consume a range before the cursor is considered advanced).
type Stream struct {
	reader        ChainReader
	address       common.Address
	topic         common.Hash
	confirmations uint64
	pollInterval  time.Duration
	lastChecked   uint64
	name          string
}

// New returns a Stream starting just after opts.After.
func New(reader ChainReader, opts Options) *Stream {
	return &Stream{
		reader:        reader,
		address:       opts.Address,
		topic:         opts.Topic,
		confirmations: opts.Confirmations,
		pollInterval:  opts.PollInterval,
		lastChecked:   opts.After,
		name:          opts.Name,
	}
}

// LastChecked reports the high-water mark the stream has yielded up to.
func (s *Stream) LastChecked() uint64 { return s.lastChecked }

// Next blocks until a LogRange is ready and returns it, polling every
// PollInterval (jitter up to one interval is acceptable). It implements
// an Idle -> AwaitTip -> AwaitLogs state machine directly as a loop, since
// Go's goroutine scheduling already gives us the suspension points a
// reactor would provide.
func (s *Stream) Next(ctx context.Context) (LogRange, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return LogRange{}, ctx.Err()
		case <-ticker.C:
		}

		tip, err := s.reader.BlockNumber(ctx)
		if err != nil {
			return LogRange{}, err
		}

		var confirmed uint64
		if tip > s.confirmations {
			confirmed = tip - s.confirmations
		}

		if confirmed <= s.lastChecked {
			continue
		}

		from := s.lastChecked + 1
		to := confirmed

		logs, err := s.reader.FilterLogs(ctx, s.filterQuery(from, to))
		if err != nil {
			return LogRange{}, err
		}

		log.Debug("logstream: yielding range", "stream", s.name, "from", from, "to", to, "logs", len(logs))
		s.lastChecked = to
		return LogRange{From: from, To: to, Logs: logs}, nil
	}
}

// filterQuery builds the eth_getLogs filter for [from, to]. The event
// signature occupies topic slot 0; slots 1-3 are left nil (not empty
// slices) so they serialize to JSON null rather than being omitted --
// go-ethereum's FilterQuery doesn't pad a short Topics slice itself, and at
// least one node implementation rejects a request missing the trailing
// null slots.
func (s *Stream) filterQuery(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{s.address},
		FromBlock: blockNumberToBigInt(from),
		ToBlock:   blockNumberToBigInt(to),
		Topics:    [][]common.Hash{{s.topic}, nil, nil, nil},
	}
}
