package preprocessing

import (
	"errors"
	"sync"
)

// ErrExhausted is returned by Reserve when a Pool does not have enough
// generated-but-unreserved offsets to satisfy a request. It is recoverable
// across compute attempts (the client may retry once the background
// scheduler has refilled the pool), per spec §7.
var ErrExhausted = errors.New("preprocessing: pool exhausted")

// Range is a reserved, exclusive-to-the-caller span of offsets [Start, End)
// within a Pool.
type Range struct {
	Start, End uint64
}

// Len reports the number of offsets in the range.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// Pool tracks one element type's append-only sequence of generated shares,
// addressed by monotonically increasing offset. The invariant
// deleted <= candidate_delete <= reserved <= generated holds at all times
// (spec §3/§8 property 7).
//
// Pool is the single shared mutable resource on the compute hot path (spec
// §5); every mutating method takes the pool's mutex for a single short
// critical section, mirroring the "Pool state... guarded by a single short
// critical section per reservation/commit" policy.
type Pool struct {
	mu sync.Mutex

	generated       uint64
	reserved        uint64
	candidateDelete uint64
	deleted         uint64

	inFlight map[uint64]struct{} // batch ids currently being generated
}

// NewPool returns an empty Pool for one element type.
func NewPool() *Pool {
	return &Pool{inFlight: map[uint64]struct{}{}}
}

// Snapshot is a point-in-time, consistent read of a Pool's counters.
type Snapshot struct {
	Generated       uint64
	Reserved        uint64
	CandidateDelete uint64
	Deleted         uint64
	InFlightBatches int
}

// Snapshot returns the Pool's current counters.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Generated:       p.generated,
		Reserved:        p.reserved,
		CandidateDelete: p.candidateDelete,
		Deleted:         p.deleted,
		InFlightBatches: len(p.inFlight),
	}
}

// Reserve atomically allocates n offsets exclusively to the caller. The
// returned Range belongs to the caller until it is passed to
// MarkConsumed. It fails with ErrExhausted if fewer than n
// offsets have been generated but not yet reserved.
func (p *Pool) Reserve(n uint64) (Range, error) {
	if n == 0 {
		return Range{}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.generated - p.reserved
	if available < n {
		return Range{}, ErrExhausted
	}
	r := Range{Start: p.reserved, End: p.reserved + n}
	p.reserved += n
	return r, nil
}

// MarkConsumed moves a reserved range into candidate_delete. Per spec §4.7
// step 6 and the Open Question it resolves, preprocessing reserved for a
// ComputeInstance is considered consumed whether the instance succeeds or
// fails — it is never returned to the pool, which keeps billing consistent
// with what was actually reserved.
func (p *Pool) MarkConsumed(r Range) {
	if r.Len() == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.End > p.candidateDelete {
		p.candidateDelete = r.End
	}
}

// Compact advances deleted to the largest contiguous prefix covered by
// candidate_delete. It is invoked periodically by the PM's background
// compactor.
func (p *Pool) Compact() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.candidateDelete > p.deleted {
		p.deleted = p.candidateDelete
	}
}

// NeedsGeneration reports whether the pool should schedule another batch,
// given a generation threshold and the cap on concurrently in-flight
// batches.
func (p *Pool) NeedsGeneration(threshold, maxParallel uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generated-p.reserved < threshold && uint64(len(p.inFlight)) < maxParallel
}

// BeginBatch marks batchID as in-flight. It is idempotent.
func (p *Pool) BeginBatch(batchID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight[batchID] = struct{}{}
}

// CommitBatch advances generated by batchSize and clears the batch's
// in-flight marker. All nodes must call CommitBatch only after the
// generation protocol for that batch has terminated successfully, so that
// generated advances identically (and atomically, from each node's own
// point of view) across the cluster.
func (p *Pool) CommitBatch(batchID, batchSize uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, batchID)
	p.generated += batchSize
}

// AbortBatch clears a batch's in-flight marker without advancing generated,
// used when a generation round fails and must be retried with a fresh
// generation id.
func (p *Pool) AbortBatch(batchID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, batchID)
}

// NextBatchID returns the batch id the leader should use for the next
// scheduled batch: generated / batchSize, per spec §4.5.
func (p *Pool) NextBatchID(batchSize uint64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if batchSize == 0 {
		return 0
	}
	return p.generated / batchSize
}
