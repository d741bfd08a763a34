package services

import (
	"sync"
	"time"
)

// Run phases, strictly forward except for the two absorbing terminals.
const (
	PhaseIdle            = "idle"
	PhaseReading         = "reading"
	PhaseProcessing      = "processing"
	PhaseSavingClients   = "saving_clients"
	PhaseSavingContracts = "saving_contracts"
	PhaseDone            = "done"
	PhaseError           = "error"
	PhaseCancelled       = "cancelled"
)

// ProgressSnapshot is what the presentation layer polls: phase,
// monotonically non-decreasing percentage and a status string.
type ProgressSnapshot struct {
	RunID     uint          `json:"run_id"`
	Phase     string        `json:"phase"`
	Percent   float64       `json:"percent"`
	Message   string        `json:"message"`
	Cancelled bool          `json:"cancelled"`
	Terminal  bool          `json:"terminal"`
	Result    *ImportResult `json:"result,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// snapshotRetention bounds how long a terminal snapshot stays available
// for polling. The persisted run record remains the source of truth
// after eviction.
const snapshotRetention = time.Hour

// ProgressRegistry tracks live runs in memory. Cancellation is a flag
// here, observed cooperatively by the pipeline at suspension points.
type ProgressRegistry struct {
	mu   sync.Mutex
	runs map[uint]*ProgressSnapshot
	now  func() time.Time // swapped out in tests
}

// Progress is the process-wide registry, polled by the HTTP layer.
var Progress = NewProgressRegistry()

func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{
		runs: make(map[uint]*ProgressSnapshot),
		now:  time.Now,
	}
}

// Register starts tracking a run and returns its tracker. Terminal
// snapshots past their retention are evicted here; live runs never are.
func (r *ProgressRegistry) Register(runID uint) *RunTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-snapshotRetention)
	for id, snap := range r.runs {
		if snap.Terminal && snap.UpdatedAt.Before(cutoff) {
			delete(r.runs, id)
		}
	}
	r.runs[runID] = &ProgressSnapshot{RunID: runID, Phase: PhaseIdle, UpdatedAt: r.now()}
	return &RunTracker{registry: r, runID: runID}
}

// Get returns a copy of the run's latest snapshot.
func (r *ProgressRegistry) Get(runID uint) (ProgressSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.runs[runID]
	if !ok {
		return ProgressSnapshot{}, false
	}
	return *snap, true
}

// Cancel sets the cooperative cancellation flag. It has no effect once
// the run is terminal; the in-flight batch always completes.
func (r *ProgressRegistry) Cancel(runID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.runs[runID]
	if !ok || snap.Terminal {
		return false
	}
	snap.Cancelled = true
	snap.UpdatedAt = r.now()
	return true
}

// RunTracker is the pipeline's write handle onto one run's progress.
type RunTracker struct {
	registry *ProgressRegistry
	runID    uint
}

// Update records phase, percentage and message. Percentages only ever
// move forward within a run.
func (t *RunTracker) Update(phase string, percent float64, message string) {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	snap, ok := t.registry.runs[t.runID]
	if !ok || snap.Terminal {
		return
	}
	snap.Phase = phase
	if percent > snap.Percent {
		snap.Percent = min(percent, 100)
	}
	snap.Message = message
	snap.UpdatedAt = t.registry.now()
}

// Cancelled reports the cooperative flag.
func (t *RunTracker) Cancelled() bool {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	snap, ok := t.registry.runs[t.runID]
	return ok && snap.Cancelled
}

// Finish marks the run terminal and attaches the final result. The
// snapshot stays available for polling after the run ends.
func (t *RunTracker) Finish(phase, message string, result *ImportResult) {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()
	snap, ok := t.registry.runs[t.runID]
	if !ok {
		return
	}
	snap.Phase = phase
	if phase == PhaseDone {
		snap.Percent = 100
	}
	snap.Message = message
	snap.Terminal = true
	snap.Result = result
	snap.UpdatedAt = t.registry.now()
}
