package renderqueue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/pipeline"
	"github.com/mantonx/cutline/internal/timebase"
)

const eventSource = "renderqueue"

// Config controls queue sizing and output placement.
type Config struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	QueueSize     int    `yaml:"queue_size"`
	OutputDir     string `yaml:"output_dir"`
	Container     string `yaml:"container"`
}

// DefaultConfig renders one job at a time into ./renders.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 1,
		QueueSize:     64,
		OutputDir:     "./renders",
		Container:     ".mp4",
	}
}

// QueueStatus summarizes the queue for API consumers.
type QueueStatus struct {
	Paused        bool `json:"paused"`
	Pending       int  `json:"pending"`
	Active        int  `json:"active"`
	MaxConcurrent int  `json:"max_concurrent"`
	TotalJobs     int  `json:"total_jobs"`
}

// Queue runs submitted jobs FIFO through the render engine,
// maxConcurrent at a time. Pausing gates the pickup of new jobs only;
// a render already handed to the engine runs to completion.
type Queue struct {
	config   Config
	compiler *pipeline.Compiler
	engine   Engine
	bus      *events.Bus
	logger   hclog.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string
	pending chan *Job
	gate    chan struct{}
	paused  bool
	active  int
	running bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQueue creates a stopped queue.
func NewQueue(config Config, compiler *pipeline.Compiler, engine Engine, bus *events.Bus, logger hclog.Logger) *Queue {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.Container == "" {
		config.Container = ".mp4"
	}
	gate := make(chan struct{})
	close(gate)
	return &Queue{
		config:   config,
		compiler: compiler,
		engine:   engine,
		bus:      bus,
		logger:   logger.Named("renderqueue"),
		jobs:     make(map[string]*Job),
		pending:  make(chan *Job, config.QueueSize),
		gate:     gate,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker loop.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return fmt.Errorf("render queue is already running")
	}
	q.running = true
	q.stopCh = make(chan struct{})

	stop := q.stopCh
	for i := 0; i < q.config.MaxConcurrent; i++ {
		q.wg.Add(1)
		go q.worker(ctx, stop)
	}

	q.logger.Info("render queue started", "max_concurrent", q.config.MaxConcurrent)
	return nil
}

// Stop waits for in-flight renders to finish. Queued jobs stay queued
// and resume when the queue starts again.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("render queue stopped")
		return nil
	case <-ctx.Done():
		q.logger.Warn("render queue stop timed out")
		return ctx.Err()
	}
}

// Submit enqueues an export of the snapshot restricted to target. An
// empty target exports the full project extent. Submit never blocks; a
// full queue is an error.
func (q *Queue) Submit(snapshot *composition.Project, target timebase.Range) (*Job, error) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil, fmt.Errorf("render queue is not running")
	}
	job := newJob(snapshot, target)
	job.OutputPath = filepath.Join(q.config.OutputDir, job.ID+q.config.Container)
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.mu.Unlock()

	select {
	case q.pending <- job:
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.order = q.order[:len(q.order)-1]
		q.mu.Unlock()
		return nil, fmt.Errorf("render queue is full")
	}

	q.logger.Info("job submitted", "job_id", job.ID, "project_id", job.ProjectID, "output", job.OutputPath)
	q.publish(events.EventRenderQueued, job, nil)
	return job, nil
}

// Cancel aborts a job. A queued job is skipped by the workers; a
// running job has its engine process killed.
func (q *Queue) Cancel(jobID string) error {
	q.mu.RLock()
	job, ok := q.jobs[jobID]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("render job not found: %s", jobID)
	}
	if job.State().Terminal() {
		return fmt.Errorf("render job %s already %s", jobID, job.State())
	}

	if job.advance(StateCancelled) {
		q.publish(events.EventRenderCancelled, job, nil)
	}
	job.runCancel()
	q.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// Pause stops workers from picking up further jobs. Running jobs
// continue.
func (q *Queue) Pause() {
	q.mu.Lock()
	if !q.paused {
		q.paused = true
		q.gate = make(chan struct{})
	}
	q.mu.Unlock()

	q.logger.Info("render queue paused")
	q.bus.Publish(events.Event{Type: events.EventQueuePaused, Source: eventSource})
}

// Resume releases paused workers.
func (q *Queue) Resume() {
	q.mu.Lock()
	if q.paused {
		q.paused = false
		close(q.gate)
	}
	q.mu.Unlock()

	q.logger.Info("render queue resumed")
	q.bus.Publish(events.Event{Type: events.EventQueueResumed, Source: eventSource})
}

// Job returns the status of one job.
func (q *Queue) Job(jobID string) (Status, error) {
	q.mu.RLock()
	job, ok := q.jobs[jobID]
	q.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("render job not found: %s", jobID)
	}
	return job.Status(), nil
}

// Jobs returns all job statuses in submission order.
func (q *Queue) Jobs() []Status {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Status, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.jobs[id].Status())
	}
	return out
}

// Status returns the queue summary.
func (q *Queue) Status() QueueStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QueueStatus{
		Paused:        q.paused,
		Pending:       len(q.pending),
		Active:        q.active,
		MaxConcurrent: q.config.MaxConcurrent,
		TotalJobs:     len(q.jobs),
	}
}

func (q *Queue) worker(ctx context.Context, stop <-chan struct{}) {
	defer q.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case job := <-q.pending:
			if !q.waitUnpaused(ctx, stop) {
				q.requeue(job)
				return
			}
			if job.State().Terminal() {
				continue
			}
			q.setActive(1)
			q.run(ctx, job)
			q.setActive(-1)
		}
	}
}

func (q *Queue) waitUnpaused(ctx context.Context, stop <-chan struct{}) bool {
	q.mu.RLock()
	gate := q.gate
	q.mu.RUnlock()
	select {
	case <-gate:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}

// requeue returns a job a worker took off the channel but never
// started, so the next Start picks it up again.
func (q *Queue) requeue(job *Job) {
	if job.State().Terminal() {
		return
	}
	select {
	case q.pending <- job:
	default:
		q.logger.Warn("no queue capacity to requeue job on shutdown", "job_id", job.ID)
	}
}

func (q *Queue) setActive(delta int) {
	q.mu.Lock()
	q.active += delta
	q.mu.Unlock()
}

// run drives one job through its lifecycle on the calling worker.
func (q *Queue) run(ctx context.Context, job *Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)

	if !job.advance(StatePreparing) {
		return
	}
	q.publish(events.EventRenderStarted, job, nil)

	desc, err := q.compiler.Compile(job.snapshot, job.target)
	if err != nil {
		q.logger.Error("compilation failed", "job_id", job.ID, "error", err)
		if job.fail(err.Error(), "") {
			q.publish(events.EventRenderFailed, job, map[string]interface{}{"error": err.Error()})
		}
		return
	}
	job.Description = desc

	job.advance(StateRendering)
	err = q.engine.Render(jobCtx, job, func(p Progress) {
		job.setProgress(p)
		if p.Fraction >= 1.0 {
			job.advance(StateEncoding)
		}
		q.publish(events.EventRenderProgress, job, map[string]interface{}{
			"fraction":     p.Fraction,
			"out_time_us":  int64(p.OutTime),
			"render_speed": p.RenderSpeed,
			"eta_seconds":  p.ETA.Seconds(),
		})
	})

	switch {
	case err == nil:
		if job.advance(StateCompleted) {
			q.logger.Info("job completed", "job_id", job.ID, "output", job.OutputPath)
			q.publish(events.EventRenderCompleted, job, map[string]interface{}{"output": job.OutputPath})
		}
	case errors.Is(err, context.Canceled) || jobCtx.Err() != nil:
		if job.advance(StateCancelled) {
			q.publish(events.EventRenderCancelled, job, nil)
		}
	default:
		var ef *EngineFailureError
		tail := ""
		if errors.As(err, &ef) {
			tail = ef.StderrTail
		}
		q.logger.Error("job failed", "job_id", job.ID, "error", err)
		if job.fail(err.Error(), tail) {
			q.publish(events.EventRenderFailed, job, map[string]interface{}{"error": err.Error()})
		}
	}
}

func (q *Queue) publish(t events.EventType, job *Job, extra map[string]interface{}) {
	data := map[string]interface{}{
		"job_id":     job.ID,
		"project_id": job.ProjectID,
		"state":      string(job.State()),
	}
	for k, v := range extra {
		data[k] = v
	}
	q.bus.Publish(events.Event{
		Type:      t,
		Source:    eventSource,
		Data:      data,
		Timestamp: time.Now(),
	})
}
