// Package concurrency implements ConcurrencyOptimizer (spec §4.4): derives
// a bounded parallelism level from workload shape and, optionally, live
// system load sampled via github.com/shirou/gopsutil/v3 (SPEC_FULL §4.11).
package concurrency

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoadSampler abstracts the system-load probe so optimizer tests do not
// depend on the host machine's actual CPU/memory state.
type LoadSampler interface {
	Sample(ctx context.Context) (cpuPercent, memPercent float64, err error)
}

// GopsutilSampler is the production LoadSampler, a 100ms CPU window plus an
// instantaneous memory read (spec §4.4 "load_based").
type GopsutilSampler struct{}

func (GopsutilSampler) Sample(ctx context.Context) (float64, float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return 0, 0, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return cpuPct, vm.UsedPercent, nil
}

// Params are the tunables that shape the four candidates (spec §4.4).
type Params struct {
	MinConcurrent      int
	MaxConcurrentLimit int
	SlicesPerThread    int
	NumCPU             int // 0 -> runtime.NumCPU()
}

func (p Params) cores() int {
	if p.NumCPU > 0 {
		return p.NumCPU
	}
	return runtime.NumCPU()
}

// Optimizer computes Concurrency from workload shape and (optionally) live
// system load.
type Optimizer struct {
	params  Params
	sampler LoadSampler
}

func New(params Params, sampler LoadSampler) *Optimizer {
	if sampler == nil {
		sampler = GopsutilSampler{}
	}
	return &Optimizer{params: params, sampler: sampler}
}

// Compute returns a concurrency level in [MinConcurrent, MaxConcurrentLimit]
// per spec §4.4's combination formula. pinned, when non-zero, is used
// verbatim but clamped to totalSlices.
func (o *Optimizer) Compute(ctx context.Context, totalSlices int, audioDurationSec float64, considerSystemLoad bool, pinned int) int {
	if pinned > 0 {
		if pinned > totalSlices {
			pinned = totalSlices
		}
		if pinned < 1 {
			pinned = 1
		}
		return pinned
	}

	cores := o.params.cores()
	cpuBased := o.cpuBased(cores)

	var loadOrCPU int
	if considerSystemLoad {
		loadOrCPU = o.loadBased(ctx, cores)
	} else {
		loadOrCPU = cpuBased
	}

	sliceBased := o.sliceBased(totalSlices)
	durationBased := o.durationBased(audioDurationSec, cores)

	soft := max(sliceBased, durationBased, loadOrCPU)
	hard := min(cpuBased, o.params.MaxConcurrentLimit)
	result := min(hard, soft)

	return clamp(result, o.params.MinConcurrent, o.params.MaxConcurrentLimit)
}

// cpuBased reserves cores for the OS by bracket (spec §4.4).
func (o *Optimizer) cpuBased(cores int) int {
	switch {
	case cores <= 4:
		return cores - 1
	case cores <= 8:
		return cores - 2
	case cores <= 16:
		return cores - 4
	case cores <= 32:
		return cores - 8
	default:
		return min(32, int(0.75*float64(cores)))
	}
}

// sliceBased scales with total_slices and slices_per_thread (spec §4.4).
func (o *Optimizer) sliceBased(n int) int {
	spt := o.params.SlicesPerThread
	if spt < 1 {
		spt = 1
	}
	ceilDiv := func(a, b int) int {
		return int(math.Ceil(float64(a) / float64(b)))
	}
	switch {
	case n <= 5:
		return min(2, n)
	case n <= 20:
		return min(8, ceilDiv(n, spt))
	case n <= 50:
		return min(16, ceilDiv(n, spt))
	case n <= 100:
		return min(24, ceilDiv(n, spt))
	default:
		return min(o.params.MaxConcurrentLimit, ceilDiv(n, spt))
	}
}

// durationBased scales with total audio duration (spec §4.4).
func (o *Optimizer) durationBased(durationSec float64, cores int) int {
	d := durationSec / 60.0
	limit := o.params.MaxConcurrentLimit
	switch {
	case d > 60:
		return min(limit, max(4, int(0.8*float64(cores))))
	case d > 30:
		return min(limit, max(3, int(0.6*float64(cores))))
	default:
		return min(limit, max(2, int(0.5*float64(cores))))
	}
}

// loadBased samples live CPU/memory load (spec §4.4). A sampling failure
// falls back to max(2, cores-2).
func (o *Optimizer) loadBased(ctx context.Context, cores int) int {
	cpuPct, memPct, err := o.sampler.Sample(ctx)
	if err != nil {
		return max(2, cores-2)
	}
	switch {
	case cpuPct >= 80 || memPct >= 80:
		return max(1, cores/2)
	case cpuPct > 60:
		return max(2, cores-2)
	default:
		return cores
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
