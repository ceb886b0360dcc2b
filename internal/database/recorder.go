package database

import (
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/cutline/internal/events"
	"github.com/mantonx/cutline/internal/renderqueue"
)

// StatusSource looks up the live status of a render job.
type StatusSource interface {
	Job(jobID string) (renderqueue.Status, error)
}

// AttachRenderRecorder mirrors render job state changes into the
// store. Progress events are skipped; only lifecycle transitions are
// worth a row update.
func AttachRenderRecorder(bus *events.Bus, source StatusSource, store *RenderJobStore, logger hclog.Logger) *events.Subscription {
	log := logger.Named("renderrecorder")
	filter := events.Filter{Types: []events.EventType{
		events.EventRenderQueued,
		events.EventRenderStarted,
		events.EventRenderCompleted,
		events.EventRenderFailed,
		events.EventRenderCancelled,
	}}
	return bus.Subscribe(filter, func(e events.Event) error {
		jobID, _ := e.Data["job_id"].(string)
		if jobID == "" {
			return nil
		}
		st, err := source.Job(jobID)
		if err != nil {
			log.Warn("render event for unknown job", "job_id", jobID, "type", e.Type)
			return nil
		}
		if err := store.Record(st); err != nil {
			log.Error("failed to persist render job state", "job_id", jobID, "error", err)
			return err
		}
		return nil
	})
}
