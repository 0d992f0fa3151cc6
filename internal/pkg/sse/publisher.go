package sse

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

type hubEventPublisher struct {
	hub *Hub
}

// NewEventPublisher forwards run lifecycle events to the company's live subscribers.
func NewEventPublisher(hub *Hub) payroll.EventPublisher {
	return &hubEventPublisher{hub: hub}
}

func (p *hubEventPublisher) PublishRunStatusChanged(ctx context.Context, event payroll.RunStatusChangedEvent) error {
	p.hub.PublishRun(event)
	return nil
}
