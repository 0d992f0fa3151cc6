package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
)

const streamKeepalive = 30 * time.Second

// StreamEvents streams run lifecycle events of the caller's company over SSE.
func (h *payrollHandlerImpl) StreamEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := payroll.ActorFromContext(r.Context())
	if !ok {
		response.HandleError(w, user.ErrCompanyIDRequired)
		return
	}
	companyID := actor.CompanyID

	if h.hub == nil {
		response.InternalServerError(w, "Event stream not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	// Lift the server write timeout for this long-lived response.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, backlog, cleanup := h.hub.Subscribe(companyID, lastEventID(r))
	defer cleanup()

	slog.Debug("Payroll event stream opened", "company_id", companyID, "subscribers", h.hub.SubscriberCount(companyID))

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"company_id\":\"%s\"}\n\n", companyID)
	for _, event := range backlog {
		writeEvent(w, event)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event sse.Event) {
	frame, err := event.Frame()
	if err != nil {
		slog.Warn("Failed to encode payroll event", "event_id", event.ID, "run_id", event.Run.RunID, "error", err)
		return
	}
	_, _ = w.Write(frame)
}

// lastEventID reads the resume point sent by a reconnecting EventSource.
// The query form serves clients that cannot set headers.
func lastEventID(r *http.Request) uint64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
