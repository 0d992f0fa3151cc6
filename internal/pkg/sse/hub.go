package sse

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

const (
	subscriberBuffer = 10
	// historySize bounds the events kept per company for Last-Event-ID replay.
	historySize = 50
)

// Event is a run status change stamped with its position in the hub's stream.
type Event struct {
	ID   uint64
	Name string
	Run  payroll.RunStatusChangedEvent
}

// Frame renders the event as an SSE message.
func (e Event) Frame() ([]byte, error) {
	data, err := json.Marshal(e.Run)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Name, data), nil
}

// Hub fans run events out to the live subscribers of each company.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[string]map[chan Event]struct{}
	history     map[string][]Event
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string][]Event),
	}
}

// Subscribe registers a subscriber for a company. Retained events with an ID
// above lastEventID are returned as backlog; zero means no replay.
func (h *Hub) Subscribe(companyID string, lastEventID uint64) (<-chan Event, []Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.subscribers[companyID] == nil {
		h.subscribers[companyID] = make(map[chan Event]struct{})
	}
	h.subscribers[companyID][ch] = struct{}{}

	var backlog []Event
	if lastEventID > 0 {
		for _, event := range h.history[companyID] {
			if event.ID > lastEventID {
				backlog = append(backlog, event)
			}
		}
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[companyID], ch)
			close(ch)
			if len(h.subscribers[companyID]) == 0 {
				delete(h.subscribers, companyID)
			}
		})
	}

	return ch, backlog, cleanup
}

// PublishRun stamps the next ID on a run status change, retains it and
// delivers it to the run's company.
func (h *Hub) PublishRun(run payroll.RunStatusChangedEvent) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	event := Event{ID: h.seq, Name: payroll.RunStatusChangedTopic, Run: run}

	recent := append(h.history[run.CompanyID], event)
	if len(recent) > historySize {
		recent = append([]Event(nil), recent[len(recent)-historySize:]...)
	}
	h.history[run.CompanyID] = recent

	for ch := range h.subscribers[run.CompanyID] {
		select {
		case ch <- event:
		default:
			// Slow subscriber; it can catch up through Last-Event-ID.
		}
	}
	return event
}

func (h *Hub) SubscriberCount(companyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers[companyID])
}

func (h *Hub) TotalSubscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
