package preprocessing_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/preprocessing"
)

var _ = Describe("Manager", func() {
	It("schedules batches while leader until the low watermark is satisfied", func() {
		cfg := preprocessing.DefaultConfig()
		cfg.BatchSize = 10
		cfg.LowWatermark = 25
		cfg.MaxParallel = 1
		cfg.CompactionInterval = time.Hour

		var calls int32
		generate := func(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}

		mgr := preprocessing.NewManager(cfg, generate, func() bool { return true }, logrus.NewEntry(logrus.New()))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		mgr.Run(ctx)

		snap := mgr.Pool(preprocessing.ElementRandomInteger).Snapshot()
		Expect(snap.Generated).To(BeNumerically(">=", cfg.LowWatermark))
		Expect(atomic.LoadInt32(&calls)).To(BeNumerically(">", 0))
	})

	It("never schedules while not leader", func() {
		cfg := preprocessing.DefaultConfig()
		cfg.CompactionInterval = time.Hour

		var calls int32
		generate := func(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}

		mgr := preprocessing.NewManager(cfg, generate, func() bool { return false }, logrus.NewEntry(logrus.New()))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		mgr.Run(ctx)

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(0)))
	})

	It("backs off and retries after a failed batch instead of tight-looping", func() {
		cfg := preprocessing.DefaultConfig()
		cfg.BatchSize = 10
		cfg.LowWatermark = 5
		cfg.MaxParallel = 1
		cfg.InitialBackoff = 20 * time.Millisecond
		cfg.MaxBackoff = 20 * time.Millisecond
		cfg.CompactionInterval = time.Hour

		var calls int32
		generate := func(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				return errors.New("transient failure")
			}
			return nil
		}

		mgr := preprocessing.NewManager(cfg, generate, func() bool { return true }, logrus.NewEntry(logrus.New()))

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		mgr.Run(ctx)

		Expect(atomic.LoadInt32(&calls)).To(BeNumerically(">=", 2))
	})
})
