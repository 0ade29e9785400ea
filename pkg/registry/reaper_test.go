package registry

import (
	"testing"
	"time"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestSweepReapsRecordsPastThreshold(t *testing.T) {
	clk := clock.New()
	clk.Set(time.Unix(1000, 0))
	reg := New(clk, metrics.Noop(), &recordingSender{})
	m := metrics.Noop()
	reaper := NewReaper(reg, clk, m, nil, 2*time.Second)

	rec := reg.AddOrUpdate(sock(1, 100), sock(1, 200), wire.TypeInteractive, 1)

	clk.Advance(2*time.Second + time.Microsecond)
	reaped := reaper.Sweep()

	require.Equal(t, 1, reaped)
	require.False(t, rec.Alive)
	require.Equal(t, 0, reg.Count())
}

func TestSweepDoesNotReapAtExactThreshold(t *testing.T) {
	clk := clock.New()
	clk.Set(time.Unix(1000, 0))
	reg := New(clk, metrics.Noop(), &recordingSender{})
	reaper := NewReaper(reg, clk, metrics.Noop(), nil, 2*time.Second)

	rec := reg.AddOrUpdate(sock(1, 100), sock(1, 200), wire.TypeInteractive, 1)

	clk.Advance(2 * time.Second)
	reaper.Sweep()

	require.True(t, rec.Alive, "strictly-greater-than is required to reap")
}

func TestSweepExemptsVoxelServers(t *testing.T) {
	clk := clock.New()
	clk.Set(time.Unix(1000, 0))
	reg := New(clk, metrics.Noop(), &recordingSender{})
	reaper := NewReaper(reg, clk, metrics.Noop(), nil, 2*time.Second)

	rec := reg.AddOrUpdate(sock(1, 100), sock(1, 200), wire.TypeVoxelServer, 1)

	clk.Advance(time.Hour)
	reaped := reaper.Sweep()

	require.Equal(t, 0, reaped)
	require.True(t, rec.Alive)
}

func TestNewCheckInAfterReapGetsFreshID(t *testing.T) {
	clk := clock.New()
	clk.Set(time.Unix(1000, 0))
	reg := New(clk, metrics.Noop(), &recordingSender{})
	reaper := NewReaper(reg, clk, metrics.Noop(), nil, 2*time.Second)

	original := reg.CheckIn(sock(1, 100), sock(1, 200), wire.TypeInteractive)

	clk.Advance(3 * time.Second)
	reaper.Sweep()

	fresh := reg.CheckIn(sock(1, 100), sock(1, 200), wire.TypeInteractive)
	require.NotEqual(t, original.ID, fresh.ID)
	require.NotSame(t, original, fresh)
}
