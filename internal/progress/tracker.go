// Package progress tracks the lifecycle of one analysis run for the
// status endpoint.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage names the pipeline phases in execution order.
type Stage string

const (
	StageSitemaps  Stage = "sitemaps"
	StageCrawl     Stage = "crawl"
	StageChunk     Stage = "chunk"
	StageEmbed     Stage = "embed"
	StageAnalyze   Stage = "analyze"
	StageReport    Stage = "report"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
	StageNotActive Stage = "idle"
)

// StageResult records completed work for one stage.
type StageResult struct {
	Stage     Stage         `json:"stage"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// Snapshot is the externally visible run state.
type Snapshot struct {
	RunID     string        `json:"run_id"`
	Stage     Stage         `json:"stage"`
	StartedAt time.Time     `json:"started_at"`
	Stages    []StageResult `json:"stages"`
	Error     string        `json:"error,omitempty"`
}

// Tracker is a concurrency-safe recorder for the current run.
type Tracker struct {
	mu       sync.Mutex
	snapshot Snapshot
	stageAt  time.Time
}

func NewTracker() *Tracker {
	return &Tracker{snapshot: Snapshot{Stage: StageNotActive}}
}

// StartRun resets the tracker for a fresh run and returns its id.
func (t *Tracker) StartRun() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = Snapshot{
		RunID:     uuid.NewString(),
		Stage:     StageSitemaps,
		StartedAt: time.Now().UTC(),
	}
	t.stageAt = t.snapshot.StartedAt
	return t.snapshot.RunID
}

// EnterStage marks the active stage.
func (t *Tracker) EnterStage(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Stage = stage
	t.stageAt = time.Now().UTC()
}

// FinishStage records counts for the stage entered last.
func (t *Tracker) FinishStage(stage Stage, succeeded, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Stages = append(t.snapshot.Stages, StageResult{
		Stage:     stage,
		Succeeded: succeeded,
		Failed:    failed,
		Duration:  time.Since(t.stageAt),
	})
}

// FinishRun marks the run done, or failed when err is non-nil.
func (t *Tracker) FinishRun(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.snapshot.Stage = StageFailed
		t.snapshot.Error = err.Error()
		return
	}
	t.snapshot.Stage = StageDone
}

// Snapshot returns a copy safe to serialize.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snapshot
	snap.Stages = append([]StageResult(nil), t.snapshot.Stages...)
	return snap
}
