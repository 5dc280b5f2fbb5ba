package scheduler

import (
	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/notifier"
)

// busPublisher adapts *notifier.Bus to the narrow cancel.Publisher
// capability the Cancellation Controller depends on, so that package never
// imports notifier directly (spec.md §9's cycle-avoidance design note).
type busPublisher struct {
	bus *notifier.Bus
}

// NewBusPublisher wraps bus for use as a cancel.Controller's Publisher.
func NewBusPublisher(bus *notifier.Bus) cancel.Publisher {
	return &busPublisher{bus: bus}
}

func (p *busPublisher) Publish(e cancel.PublishedEvent) {
	if p.bus == nil {
		return
	}
	kind := notifier.EventCancellationRequested
	if e.Kind == "BatchCompleted" {
		kind = notifier.EventBatchCompleted
	}
	p.bus.Publish(notifier.Event{Kind: kind, BatchID: e.BatchID, Payload: e.Payload})
}
