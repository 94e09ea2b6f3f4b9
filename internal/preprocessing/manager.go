package preprocessing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Generator produces one batch of batchSize shares of the given element
// type, running whatever protocol (RAN, RAN-BIT, or a composite) backs that
// element, and returns once every participant has committed the batch.
// internal/orchestrator's ProtocolLauncher.GenerateBatch implements it;
// Manager only schedules calls.
type Generator func(ctx context.Context, element Element, batchID, batchSize uint64) error

// Config controls the leader-driven scheduler's behavior, mirroring the
// per-type thresholds named in spec §4.5/§8.
type Config struct {
	BatchSize          uint64
	LowWatermark       uint64 // schedule a new batch once generated-reserved drops below this
	MaxParallel        uint64 // cap on concurrently in-flight batches, per element
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	CompactionInterval time.Duration
}

// DefaultConfig returns reasonable scheduler parameters for a single node.
func DefaultConfig() Config {
	return Config{
		BatchSize:          1024,
		LowWatermark:       4096,
		MaxParallel:        2,
		InitialBackoff:     500 * time.Millisecond,
		MaxBackoff:         30 * time.Second,
		CompactionInterval: 10 * time.Second,
	}
}

// Manager owns one Pool per Element and runs the leader-driven generation
// loop described in spec §4.5: whenever a pool's available material drops
// below a low watermark, schedule a batch; on failure, retry with
// exponential backoff instead of tight-looping the rest of the cluster.
type Manager struct {
	cfg       Config
	generate  Generator
	log       *logrus.Entry
	isLeader  func() bool
	pools     map[Element]*Pool
	poolsOnce sync.Once
}

// NewManager constructs a Manager with one empty Pool per known Element.
// isLeader reports whether this node should drive the scheduling loop for
// the current epoch; non-leaders still maintain local pools (populated as
// generation protocols complete, since every participant commits a batch)
// but never originate a schedule decision themselves.
func NewManager(cfg Config, generate Generator, isLeader func() bool, log *logrus.Entry) *Manager {
	m := &Manager{cfg: cfg, generate: generate, isLeader: isLeader, log: log}
	m.poolsOnce.Do(func() {
		m.pools = make(map[Element]*Pool, len(Elements))
		for _, e := range Elements {
			m.pools[e] = NewPool()
		}
	})
	return m
}

// Pool returns the Pool backing element, for reservation by the VM/audit
// layers.
func (m *Manager) Pool(element Element) *Pool {
	return m.pools[element]
}

// Run drives the scheduling and compaction loops until ctx is canceled. It
// is intended to be started once per node at startup.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1 + len(Elements))

	go func() {
		defer wg.Done()
		m.compactionLoop(ctx)
	}()
	for _, e := range Elements {
		e := e
		go func() {
			defer wg.Done()
			m.scheduleLoop(ctx, e)
		}()
	}
	wg.Wait()
}

func (m *Manager) compactionLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CompactionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range m.pools {
				p.Compact()
			}
		}
	}
}

// scheduleLoop continuously checks one element's pool and, while leader,
// schedules batches with exponential backoff on failure.
func (m *Manager) scheduleLoop(ctx context.Context, element Element) {
	pool := m.pools[element]
	backoff := m.cfg.InitialBackoff
	pollInterval := 250 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !m.isLeader() || !pool.NeedsGeneration(m.cfg.LowWatermark, m.cfg.MaxParallel) {
			if sleepOrDone(ctx, pollInterval) {
				return
			}
			continue
		}

		batchID := pool.NextBatchID(m.cfg.BatchSize)
		pool.BeginBatch(batchID)
		err := m.generate(ctx, element, batchID, m.cfg.BatchSize)
		if err != nil {
			pool.AbortBatch(batchID)
			if errors.Is(err, context.Canceled) {
				return
			}
			m.log.WithError(err).WithField("element", element).WithField("batch", batchID).
				Warn("preprocessing batch generation failed, backing off")
			if sleepOrDone(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > m.cfg.MaxBackoff {
				backoff = m.cfg.MaxBackoff
			}
			continue
		}

		backoff = m.cfg.InitialBackoff
		pool.CommitBatch(batchID, m.cfg.BatchSize)
		m.log.WithField("element", element).WithField("batch", batchID).Debug("preprocessing batch committed")
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}
