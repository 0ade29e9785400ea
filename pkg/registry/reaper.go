package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/wire"
)

// SilenceThreshold is the default interval past which a non-exempt
// record is reaped.
const SilenceThreshold = 2 * time.Second

// Reaper marks records silent past SilenceThreshold as dead.
// VoxelServer records are exempt: they are persistent content
// sources whose reachability is asserted by deployment, not chatter.
type Reaper struct {
	reg       *Registry
	clock     *clock.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	threshold time.Duration
}

// NewReaper constructs a Reaper for reg using the given threshold.
func NewReaper(reg *Registry, clk *clock.Clock, m *metrics.Metrics, logger *slog.Logger, threshold time.Duration) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{reg: reg, clock: clk, metrics: m, logger: logger, threshold: threshold}
}

// Sweep runs one reap pass and returns the number of records reaped.
func (rp *Reaper) Sweep() int {
	reaped := 0
	now := rp.clock.NowMicro()
	thresholdMicro := rp.threshold.Microseconds()

	rp.reg.mu.Lock()
	defer rp.reg.mu.Unlock()

	for i := 0; i < rp.reg.numAgents; i++ {
		r := rp.reg.buckets[i/AgentsPerBucket][i%AgentsPerBucket]
		if !r.Alive || r.Type == wire.TypeVoxelServer {
			continue
		}
		if now-r.LastHeardMicro > thresholdMicro {
			r.Alive = false
			reaped++
			rp.logger.Debug("reaped silent agent", "id", r.ID, "type", r.Type.String())
		}
	}

	if reaped > 0 && rp.metrics != nil {
		rp.metrics.ReapedTotal.Add(float64(reaped))
		rp.metrics.LiveAgents.Set(float64(rp.reg.countLiveLocked()))
	}

	return reaped
}

// Run wakes every Reaper.threshold and sweeps until ctx is cancelled.
func (rp *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(rp.threshold)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rp.Sweep()
		}
	}
}
