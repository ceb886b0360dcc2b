// Package renderqueue schedules the export of compiled pipelines
// through an external render engine.
package renderqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/pipeline"
	"github.com/mantonx/cutline/internal/timebase"
)

// JobState represents the lifecycle state of a render job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StatePreparing JobState = "preparing"
	StateRendering JobState = "rendering"
	StateEncoding  JobState = "encoding"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// stateRank orders the lifecycle. A job only ever moves to a higher
// rank; terminal states share the top rank and are final.
var stateRank = map[JobState]int{
	StateQueued:    0,
	StatePreparing: 1,
	StateRendering: 2,
	StateEncoding:  3,
	StateCompleted: 4,
	StateFailed:    4,
	StateCancelled: 4,
}

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress is a point-in-time view of a running render.
type Progress struct {
	Fraction    float64            `json:"fraction"`
	OutTime     timebase.Timestamp `json:"out_time"`
	Frame       int64              `json:"frame"`
	FPS         float64            `json:"fps"`
	RenderSpeed float64            `json:"render_speed"`
	ETA         time.Duration      `json:"eta"`
}

// Job is one queued export. The snapshot is compiled on the worker
// during the preparing state; all fields behind the mutex change only
// through the queue and the engine's progress callback.
type Job struct {
	ID          string
	ProjectID   string
	OutputPath  string
	Description *pipeline.Description

	snapshot *composition.Project
	target   timebase.Range

	mu         sync.RWMutex
	state      JobState
	progress   Progress
	err        string
	stderrTail string
	submitted  time.Time
	started    time.Time
	finished   time.Time

	cancelMu sync.Mutex
	cancel   func()
}

// Status is the external, copyable view of a job.
type Status struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	OutputPath string    `json:"output_path"`
	State      JobState  `json:"state"`
	Progress   Progress  `json:"progress"`
	Error      string    `json:"error,omitempty"`
	StderrTail string    `json:"stderr_tail,omitempty"`
	Submitted  time.Time `json:"submitted"`
	Started    time.Time `json:"started,omitempty"`
	Finished   time.Time `json:"finished,omitempty"`
}

func newJob(snapshot *composition.Project, target timebase.Range) *Job {
	return &Job{
		ID:        uuid.New().String(),
		ProjectID: snapshot.ID,
		snapshot:  snapshot,
		target:    target,
		state:     StateQueued,
		submitted: time.Now(),
	}
}

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// advance moves the job forward. Backward or lateral transitions and
// transitions out of a terminal state are ignored, which makes late
// engine callbacks after a cancel harmless.
func (j *Job) advance(to JobState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state.Terminal() || stateRank[to] <= stateRank[j.state] {
		return false
	}
	j.state = to
	switch to {
	case StatePreparing:
		j.started = time.Now()
	case StateCompleted, StateFailed, StateCancelled:
		j.finished = time.Now()
	}
	return true
}

func (j *Job) setProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.progress = p
}

func (j *Job) fail(err string, stderrTail string) bool {
	j.mu.Lock()
	ok := !j.state.Terminal()
	if ok {
		j.state = StateFailed
		j.err = err
		j.stderrTail = stderrTail
		j.finished = time.Now()
	}
	j.mu.Unlock()
	return ok
}

// Status returns a snapshot of the job for API consumers.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Status{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		OutputPath: j.OutputPath,
		State:      j.state,
		Progress:   j.progress,
		Error:      j.err,
		StderrTail: j.stderrTail,
		Submitted:  j.submitted,
		Started:    j.started,
		Finished:   j.finished,
	}
}

func (j *Job) setCancel(fn func()) {
	j.cancelMu.Lock()
	j.cancel = fn
	j.cancelMu.Unlock()
}

func (j *Job) runCancel() {
	j.cancelMu.Lock()
	fn := j.cancel
	j.cancelMu.Unlock()
	if fn != nil {
		fn()
	}
}
