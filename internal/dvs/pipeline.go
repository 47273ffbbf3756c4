package dvs

import (
	"context"
	"sync"
	"time"

	"github.com/eventvision/normflow/internal/monitoring"
)

// PackRecorder persists extraction results. Implemented by dvsdb.
type PackRecorder interface {
	RecordPack(runID string, pack *NormFlowPack) error
}

// PackObserver receives each extracted pack for side channels such as stats
// or plotting. Observers must not retain the pack past the call unless they
// copy what they need.
type PackObserver interface {
	ObservePack(pack *NormFlowPack)
}

// AnalysisRunnerConfig configures an AnalysisRunner.
type AnalysisRunnerConfig struct {
	// Surface is the event surface the runner owns.
	Surface *EventSurface
	// Extractor runs each analysis cycle.
	Extractor *NormFlowExtractor
	// Interval between extraction cycles (e.g. 100*time.Millisecond).
	Interval time.Duration
	// RunID tags recorded packs; typically a dvsdb run UUID.
	RunID string
	// Recorder is optional; nil disables persistence.
	Recorder PackRecorder
	// Observers are optional side channels.
	Observers []PackObserver
}

// AnalysisRunner serialises ingestion and extraction for one sensor stream.
// Ingestion mutates the surface under the runner's lock; each extraction
// cycle takes a snapshot under the same lock and then processes it outside
// the lock, so ingestion is only blocked for the snapshot copy.
type AnalysisRunner struct {
	mu        sync.Mutex
	surface   *EventSurface
	extractor *NormFlowExtractor
	interval  time.Duration
	runID     string
	recorder  PackRecorder
	observers []PackObserver

	lastPack *NormFlowPack
	cycles   int64
}

// NewAnalysisRunner creates a runner. Interval defaults to 100ms.
func NewAnalysisRunner(cfg AnalysisRunnerConfig) *AnalysisRunner {
	interval := cfg.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	return &AnalysisRunner{
		surface:   cfg.Surface,
		extractor: cfg.Extractor,
		interval:  interval,
		runID:     cfg.RunID,
		recorder:  cfg.Recorder,
		observers: cfg.Observers,
	}
}

// IngestBatch feeds a batch of events into the surface.
func (r *AnalysisRunner) IngestBatch(batch EventBatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.IngestBatch(batch)
}

// ExtractCycle runs one extraction cycle and returns the pack. The surface
// lock is held only while the snapshot is taken. A surface that has seen no
// events yields a pack with zero flows.
func (r *AnalysisRunner) ExtractCycle() *NormFlowPack {
	r.mu.Lock()
	snap := r.surface.Snapshot(r.extractor.Params.DecaySec)
	r.mu.Unlock()

	pack := r.extractor.Extract(snap)

	if r.recorder != nil {
		if err := r.recorder.RecordPack(r.runID, pack); err != nil {
			monitoring.Logf("analysis runner: record pack failed: %v", err)
		}
	}
	for _, obs := range r.observers {
		obs.ObservePack(pack)
	}

	r.mu.Lock()
	r.lastPack = pack
	r.cycles++
	r.mu.Unlock()
	return pack
}

// LatestPack returns the most recent pack, or nil before the first cycle.
func (r *AnalysisRunner) LatestPack() *NormFlowPack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPack
}

// Cycles returns the number of completed extraction cycles.
func (r *AnalysisRunner) Cycles() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

// Surface exposes the owned surface for snapshot-style reads by the monitor.
// Callers must not mutate it.
func (r *AnalysisRunner) Surface() *EventSurface { return r.surface }

// SnapshotDecayed returns a decayed time-surface image taken under the
// runner's lock, for monitor endpoints.
func (r *AnalysisRunner) SnapshotDecayed(decaySec float64) SurfaceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface.Snapshot(decaySec)
}

// Run executes extraction cycles at the configured interval until the
// context is cancelled.
func (r *AnalysisRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pack := r.ExtractCycle()
			if len(pack.Flows) > 0 {
				monitoring.Logf("extraction cycle %d: %d flows at t=%.6fs",
					r.Cycles(), len(pack.Flows), pack.TimestampSec)
			}
		}
	}
}
