// Package bridgecore implements the Bridge: it owns the three
// per-direction relay streams, advances the persisted cursor state as each
// stream yields results, and emits an updated snapshot to the state
// database whenever at least one cursor moves.
package bridgecore

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/bloomfilter/v2"

	"github.com/parity-relay/bridge/logstream"
	"github.com/parity-relay/bridge/metrics"
	"github.com/parity-relay/bridge/relay"
	"github.com/parity-relay/bridge/relaystream"
	"github.com/parity-relay/bridge/statedb"
)

// relayedBloomBits/relayedBloomHashes size the in-process advisory filter
// that flags a withdraw relayed twice in the same run -- the real
// double-submission guard is Main's withdraws mapping (on-chain, authoritative);
// this is only a cheap early warning, with a false-positive rate under 0.1%
// up to about two hundred thousand relays (roughly 0.4% at three hundred
// thousand).
const (
	relayedBloomBits   = 1 << 22
	relayedBloomHashes = 4
)

// drainTick is how often Run re-checks the relay streams for completed
// jobs even when no new confirmed range has arrived -- jobs finish on
// their own goroutines between ranges, and draining only when a new range
// shows up would leave a completed result sitting unpublished.
const drainTick = 200 * time.Millisecond

// Direction is one of the three relay streams the Bridge merges.
type Direction int

const (
	MainToSide Direction = iota
	SideToMain
	SideToMainSignatures
)

// Streams bundles the three per-direction log streams and the relay job
// factories that turn their confirmed logs into jobs, everything the
// Bridge needs to drive the full relay engine.
type Streams struct {
	MainToSideSign       *logstream.Stream
	MainToSideSignFn      relaystream.LogToJob[relay.MainToSideSignResult]
	SideToMainSign       *logstream.Stream
	SideToMainSignFn      relaystream.LogToJob[common.Hash]
	SideToMainSignatures *logstream.Stream
	SideToMainSignaturesFn relaystream.LogToJob[*types.Receipt]
}

// Bridge merges the three confirmed-log streams into one persisted cursor
// state, writing it to disk each time at least one cursor advances.
type Bridge struct {
	db      *statedb.DB
	metrics *metrics.Metrics

	mainToSideLogs       *logstream.Stream
	sideToMainLogs       *logstream.Stream
	sideToMainSigLogs    *logstream.Stream

	mainToSideRelay    *relaystream.Stream[relay.MainToSideSignResult]
	sideToMainRelay    *relaystream.Stream[common.Hash]
	sideToMainSigRelay *relaystream.Stream[*types.Receipt]

	relayedTxs *bloomfilter.Filter
}

// New constructs a Bridge over an already-open state database and the
// three confirmed log streams/job factories. m may be nil to disable
// metrics publication (used by tests).
func New(db *statedb.DB, m *metrics.Metrics, s Streams) *Bridge {
	if m == nil {
		m = metrics.New()
	}
	relayedTxs, err := bloomfilter.New(relayedBloomBits, relayedBloomHashes)
	if err != nil {
		// Only fails on a non-positive size/hash count, both of which are
		// compile-time constants here.
		panic(err)
	}
	return &Bridge{
		db:                 db,
		metrics:            m,
		mainToSideLogs:     s.MainToSideSign,
		sideToMainLogs:     s.SideToMainSign,
		sideToMainSigLogs:  s.SideToMainSignatures,
		mainToSideRelay:    relaystream.New[relay.MainToSideSignResult](nil, s.MainToSideSignFn),
		sideToMainRelay:    relaystream.New[common.Hash](nil, s.SideToMainSignFn),
		sideToMainSigRelay: relaystream.New[*types.Receipt](nil, s.SideToMainSignaturesFn),
		relayedTxs:         relayedTxs,
	}
}

// Run drives the Bridge until ctx is cancelled or an RPC fails: any error
// from any of the three log streams terminates the whole daemon, fail-fast
// rather than limping along on two out of three directions.
//
// Only this goroutine ever calls Ingest or Drain on the three relay
// streams (and so, transitively, the only goroutine touching their
// internal orderedstream.Stream entries). The three pumpLogs goroutines
// below do the blocking network polling and hand finished ranges back
// over a channel rather than ingesting them directly, so there is no
// shared mutable state between threads.
func (b *Bridge) Run(ctx context.Context) error {
	mainToSideRanges := make(chan relaystream.LogRange)
	sideToMainRanges := make(chan relaystream.LogRange)
	sideToMainSigRanges := make(chan relaystream.LogRange)
	errs := make(chan error, 3)

	go b.pumpLogs(ctx, b.mainToSideLogs, mainToSideRanges, errs)
	go b.pumpLogs(ctx, b.sideToMainLogs, sideToMainRanges, errs)
	go b.pumpLogs(ctx, b.sideToMainSigLogs, sideToMainSigRanges, errs)

	ticker := time.NewTicker(drainTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case r := <-mainToSideRanges:
			b.mainToSideRelay.Ingest(ctx, r)
		case r := <-sideToMainRanges:
			b.sideToMainRelay.Ingest(ctx, r)
		case r := <-sideToMainSigRanges:
			b.sideToMainSigRelay.Ingest(ctx, r)
		case <-ticker.C:
		}

		if err := b.drainOnce(); err != nil {
			return err
		}
	}
}

// pumpLogs repeatedly blocks on stream.Next and sends each confirmed range
// to out, reporting the first error onto errs and returning. It never
// touches a relaystream.Stream itself -- ingestion happens on Run's
// goroutine once the range arrives over the channel.
func (b *Bridge) pumpLogs(ctx context.Context, stream *logstream.Stream, out chan<- relaystream.LogRange, errs chan<- error) {
	for {
		r, err := stream.Next(ctx)
		if err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- relaystream.LogRange{From: r.From, To: r.To, Logs: r.Logs}:
		case <-ctx.Done():
			return
		}
	}
}

// drainOnce advances every stream as far as it will go without blocking,
// then writes and publishes an updated PersistedState iff at least one
// cursor moved.
func (b *Bridge) drainOnce() error {
	state := b.db.Read()
	advanced := false

	mainToSide, err := b.mainToSideRelay.Drain()
	if err != nil {
		return err
	}
	for _, r := range mainToSide {
		if r.BlockNumber > state.LastMainToSideSignAtBlock {
			state.LastMainToSideSignAtBlock = r.BlockNumber
			advanced = true
		}
		if r.Ok {
			b.recordMainToSide(r.Value)
		}
	}

	sideToMain, err := b.sideToMainRelay.Drain()
	if err != nil {
		return err
	}
	for _, r := range sideToMain {
		if r.BlockNumber > state.LastSideToMainSignAtBlock {
			state.LastSideToMainSignAtBlock = r.BlockNumber
			advanced = true
		}
		if r.Ok {
			b.metrics.IncJobOutcome(metrics.SideToMain, metrics.Signed)
		}
	}

	sideToMainSigs, err := b.sideToMainSigRelay.Drain()
	if err != nil {
		return err
	}
	for _, r := range sideToMainSigs {
		if r.BlockNumber > state.LastSideToMainSignaturesAtBlock {
			state.LastSideToMainSignaturesAtBlock = r.BlockNumber
			advanced = true
		}
		if r.Ok {
			b.recordSideToMainSignatures(r.Value)
		}
	}

	if !advanced {
		return nil
	}

	if err := b.db.Write(state); err != nil {
		return err
	}

	log.Info("bridge: persisted state advanced",
		"main_to_side", state.LastMainToSideSignAtBlock,
		"side_to_main", state.LastSideToMainSignAtBlock,
		"side_to_main_signatures", state.LastSideToMainSignaturesAtBlock,
	)
	b.metrics.SetCursor(metrics.MainToSide, state.LastMainToSideSignAtBlock)
	b.metrics.SetCursor(metrics.SideToMain, state.LastSideToMainSignAtBlock)
	b.metrics.SetCursor(metrics.SideToMainRelay, state.LastSideToMainSignaturesAtBlock)
	return nil
}

func (b *Bridge) recordMainToSide(result relay.MainToSideSignResult) {
	if result.AlreadySigned {
		b.metrics.IncJobOutcome(metrics.MainToSide, metrics.AlreadySigned)
		return
	}
	b.metrics.IncJobOutcome(metrics.MainToSide, metrics.Signed)
}

// recordSideToMainSignatures can't distinguish "this authority wasn't
// responsible for relay" from "another authority already relayed it" --
// both return a nil *types.Receipt from the job (relay/sidetomainsignatures.go)
// -- so both are counted as NotResponsible. Splitting them would mean
// threading an explicit status enum through the job result.
func (b *Bridge) recordSideToMainSignatures(receipt *types.Receipt) {
	if receipt == nil {
		b.metrics.IncJobOutcome(metrics.SideToMainRelay, metrics.NotResponsible)
		return
	}

	h := bloomHash(receipt.TxHash)
	if b.relayedTxs.ContainsHash(h) {
		log.Warn("bridge: withdraw relay tx seen twice in this run", "tx", receipt.TxHash.Hex())
	}
	b.relayedTxs.AddHash(h)

	b.metrics.IncJobOutcome(metrics.SideToMainRelay, metrics.Relayed)
}

// bloomHash folds a tx hash down to the uint64 the bloom filter indexes on.
func bloomHash(h common.Hash) uint64 {
	return binary.BigEndian.Uint64(h[:8])
}
