package renderqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/cutline/internal/composition"
	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/pipeline"
	"github.com/mantonx/cutline/internal/timebase"
)

type stubResolver struct{}

func (stubResolver) ResolvePath(assetID string) (string, error) {
	return "/media/" + assetID + ".mp4", nil
}

type fakeEngine struct {
	mu       sync.Mutex
	rendered []string
	block    chan struct{}
	fail     error
	progress []Progress
}

func (f *fakeEngine) Render(ctx context.Context, job *Job, onProgress func(Progress)) error {
	f.mu.Lock()
	f.rendered = append(f.rendered, job.ID)
	block := f.block
	progress := f.progress
	fail := f.fail
	f.mu.Unlock()

	for _, p := range progress {
		onProgress(p)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fail
}

func (f *fakeEngine) renders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rendered...)
}

func testSnapshot(t *testing.T) *composition.Project {
	t.Helper()
	p := composition.NewProject("export", composition.DefaultSettings())
	track := p.AddTrack("V1", composition.TrackVideo)
	clip := composition.NewMediaClip("a",
		timebase.Range{Start: 0, End: timebase.FromSeconds(5)},
		"asset-a",
		timebase.Range{Start: 0, End: timebase.FromSeconds(5)},
	)
	require.NoError(t, p.InsertClip(track.ID, clip))
	return p.Snapshot()
}

func startedQueue(t *testing.T, engine Engine) (*Queue, *events.Bus) {
	t.Helper()
	bus := events.NewBus(events.DefaultConfig(), hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))

	compiler := pipeline.NewCompiler(stubResolver{}, hclog.NewNullLogger())
	q := NewQueue(Config{OutputDir: t.TempDir()}, compiler, engine, bus, hclog.NewNullLogger())
	require.NoError(t, q.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Stop(ctx)
		bus.Stop(ctx)
	})
	return q, bus
}

func waitForState(t *testing.T, q *Queue, jobID string, want JobState) Status {
	t.Helper()
	var status Status
	require.Eventually(t, func() bool {
		var err error
		status, err = q.Job(jobID)
		return err == nil && status.State == want
	}, 3*time.Second, 5*time.Millisecond, "job never reached %s", want)
	return status
}

func TestJobRunsToCompletion(t *testing.T) {
	engine := &fakeEngine{
		progress: []Progress{
			{Fraction: 0.5, OutTime: timebase.FromSeconds(2.5), RenderSpeed: 2.0},
			{Fraction: 1.0, OutTime: timebase.FromSeconds(5)},
		},
	}
	q, _ := startedQueue(t, engine)

	job, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(job.OutputPath, job.ID+".mp4"))

	status := waitForState(t, q, job.ID, StateCompleted)
	assert.Equal(t, 1.0, status.Progress.Fraction)
	assert.False(t, status.Finished.IsZero())
	assert.NotNil(t, job.Description)
}

func TestJobsRunFIFO(t *testing.T) {
	engine := &fakeEngine{}
	q, _ := startedQueue(t, engine)

	first, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	second, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)

	waitForState(t, q, second.ID, StateCompleted)
	waitForState(t, q, first.ID, StateCompleted)
	assert.Equal(t, []string{first.ID, second.ID}, engine.renders())
}

func TestUniqueOutputPaths(t *testing.T) {
	q, _ := startedQueue(t, &fakeEngine{})

	a, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	b, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	assert.NotEqual(t, a.OutputPath, b.OutputPath)
}

func TestFailureCapturesStderrTail(t *testing.T) {
	engine := &fakeEngine{
		fail: &EngineFailureError{
			Err:        errors.New("exit status 1"),
			StderrTail: "No such filter: 'bogus'",
		},
	}
	q, _ := startedQueue(t, engine)

	job, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)

	status := waitForState(t, q, job.ID, StateFailed)
	assert.Contains(t, status.Error, "exit status 1")
	assert.Equal(t, "No such filter: 'bogus'", status.StderrTail)
}

func TestCancelRunningJob(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	q, _ := startedQueue(t, engine)

	job, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	waitForState(t, q, job.ID, StateRendering)

	require.NoError(t, q.Cancel(job.ID))
	status := waitForState(t, q, job.ID, StateCancelled)
	assert.Empty(t, status.Error)

	// terminal jobs cannot be cancelled again
	assert.Error(t, q.Cancel(job.ID))
}

func TestCancelQueuedJobIsSkipped(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	q, _ := startedQueue(t, engine)

	running, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	waitForState(t, q, running.ID, StateRendering)

	queued, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(queued.ID))

	close(engine.block)
	waitForState(t, q, running.ID, StateCompleted)
	waitForState(t, q, queued.ID, StateCancelled)
	assert.Equal(t, []string{running.ID}, engine.renders())
}

func TestPauseGatesPickupOnly(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	q, _ := startedQueue(t, engine)

	running, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	waitForState(t, q, running.ID, StateRendering)

	q.Pause()
	queued, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)

	// the running job finishes even while paused
	close(engine.block)
	waitForState(t, q, running.ID, StateCompleted)

	// the queued job stays queued until resume
	time.Sleep(50 * time.Millisecond)
	status, err := q.Job(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, status.State)
	assert.True(t, q.Status().Paused)

	q.Resume()
	waitForState(t, q, queued.ID, StateCompleted)
}

func TestStopWhilePausedKeepsJobQueued(t *testing.T) {
	engine := &fakeEngine{}
	q, _ := startedQueue(t, engine)

	q.Pause()
	job, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)

	// let a worker take the job off the channel and park on the gate
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	status, err := q.Job(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, status.State)

	require.NoError(t, q.Start(context.Background()))
	q.Resume()
	waitForState(t, q, job.ID, StateCompleted)
}

func TestJobEventsPublished(t *testing.T) {
	engine := &fakeEngine{
		progress: []Progress{{Fraction: 1.0, OutTime: timebase.FromSeconds(5)}},
	}
	bus := events.NewBus(events.DefaultConfig(), hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))

	var mu sync.Mutex
	var seen []events.EventType
	bus.Subscribe(events.Filter{Sources: []string{"renderqueue"}}, func(e events.Event) error {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		return nil
	})

	compiler := pipeline.NewCompiler(stubResolver{}, hclog.NewNullLogger())
	q := NewQueue(Config{OutputDir: t.TempDir()}, compiler, engine, bus, hclog.NewNullLogger())
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Stop(ctx)
		bus.Stop(ctx)
	})

	job, err := q.Submit(testSnapshot(t), timebase.Range{})
	require.NoError(t, err)
	waitForState(t, q, job.ID, StateCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 4
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events.EventRenderQueued, seen[0])
	assert.Equal(t, events.EventRenderStarted, seen[1])
	assert.Contains(t, seen, events.EventRenderProgress)
	assert.Equal(t, events.EventRenderCompleted, seen[len(seen)-1])
}

func TestAdvanceIsMonotonic(t *testing.T) {
	job := newJob(composition.NewProject("p", composition.DefaultSettings()), timebase.Range{})

	assert.True(t, job.advance(StatePreparing))
	assert.True(t, job.advance(StateRendering))
	assert.False(t, job.advance(StatePreparing), "backward transition must be ignored")
	assert.True(t, job.advance(StateCompleted))
	assert.False(t, job.advance(StateFailed), "terminal states are final")
	assert.Equal(t, StateCompleted, job.State())
}

func TestProgressMonitorParsesKeyValueStream(t *testing.T) {
	var updates []Progress
	mon := &progressMonitor{
		duration: timebase.FromSeconds(10),
		started:  time.Now().Add(-2 * time.Second),
		onUpdate: func(p Progress) { updates = append(updates, p) },
	}

	stream := strings.Join([]string{
		"frame=  120",
		"fps= 24.5",
		"out_time_us=5000000",
		"speed= 1.25x",
		"progress=continue",
		"out_time_us=10000000",
		"progress=end",
	}, "\n")
	mon.consume(strings.NewReader(stream))

	require.Len(t, updates, 2)
	assert.Equal(t, int64(120), updates[0].Frame)
	assert.Equal(t, 24.5, updates[0].FPS)
	assert.Equal(t, timebase.FromSeconds(5), updates[0].OutTime)
	assert.Equal(t, 1.25, updates[0].RenderSpeed)
	assert.InDelta(t, 0.5, updates[0].Fraction, 1e-9)
	assert.Greater(t, updates[0].ETA, time.Duration(0))

	assert.Equal(t, 1.0, updates[1].Fraction)
}

func TestProgressMonitorKeepsStderrTail(t *testing.T) {
	mon := &progressMonitor{duration: timebase.FromSeconds(1), started: time.Now()}

	var lines []string
	for i := 0; i < stderrTailLines+10; i++ {
		lines = append(lines, "noise")
	}
	lines = append(lines, "Error: something broke")
	mon.consume(strings.NewReader(strings.Join(lines, "\n")))

	tail := mon.tail()
	assert.Contains(t, tail, "Error: something broke")
	assert.LessOrEqual(t, len(strings.Split(tail, "\n")), stderrTailLines)
}

func TestFFmpegEngineArgs(t *testing.T) {
	job := newJob(composition.NewProject("p", composition.DefaultSettings()), timebase.Range{})
	job.OutputPath = "/tmp/out.mp4"
	job.Description = &pipeline.Description{
		VideoOut: "v3",
		AudioOut: "a1",
		Inputs: []pipeline.Input{
			{Index: 0, Path: "/media/a.mp4", Source: timebase.Range{Start: 0, End: timebase.FromSeconds(5)}},
		},
		Stages: []pipeline.Stage{
			{Kind: pipeline.StageSource, Output: "v0", Params: []pipeline.Param{
				{Key: "kind", Value: "canvas"},
				{Key: "size", Value: "1920x1080"},
				{Key: "fps", Value: "29.97"},
				{Key: "duration_us", Value: "5000000"},
			}},
		},
	}

	engine := NewFFmpegEngine(DefaultEncodingConfig(), hclog.NewNullLogger())
	args := engine.Args(job)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-i /media/a.mp4")
	assert.Contains(t, joined, "-filter_complex")
	assert.Contains(t, joined, "-map [v3] -map [a1]")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-progress pipe:2")
	assert.Contains(t, joined, "-y /tmp/out.mp4")
}
