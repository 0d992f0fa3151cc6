package payroll

import (
	"context"
	"errors"
	"time"
)

const RunStatusChangedTopic = "payroll.run.status_changed"

// RunStatusChangedEvent is emitted after a run transition commits.
type RunStatusChangedEvent struct {
	EventID      string    `json:"event_id"`
	RunID        string    `json:"run_id"`
	CompanyID    string    `json:"company_id"`
	DepartmentID *string   `json:"department_id,omitempty"`
	PeriodMonth  int       `json:"period_month"`
	PeriodYear   int       `json:"period_year"`
	Transition   string    `json:"transition"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	Actor        string    `json:"actor"`
	TotalNet     string    `json:"total_net"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	PublishRunStatusChanged(ctx context.Context, event RunStatusChangedEvent) error
}

type fanOutPublisher []EventPublisher

// FanOut publishes each event to every publisher in order and joins their errors.
func FanOut(publishers ...EventPublisher) EventPublisher {
	return fanOutPublisher(publishers)
}

func (f fanOutPublisher) PublishRunStatusChanged(ctx context.Context, event RunStatusChangedEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishRunStatusChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
