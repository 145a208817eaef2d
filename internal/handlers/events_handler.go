package handlers

import (
	"fmt"
	"net/http"
	"time"

	"usos/internal/notify"
)

const defaultHeartbeat = 25 * time.Second

// EventsHandler streams change events to the caller over server-sent events
type EventsHandler struct {
	broker    *notify.Broker
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler. A zero heartbeat uses the default.
func NewEventsHandler(broker *notify.Broker, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventsHandler{broker: broker, heartbeat: heartbeat}
}

// Stream handles GET /api/events. The caller receives events about
// themselves and about their family; clients re-fetch the named entity.
// A user who joins a family while connected should reconnect to start
// receiving its events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, r, http.StatusInternalServerError, ErrStreamingUnsupported, "", nil)
		return
	}

	familyID := ""
	if user.HasFamily() {
		familyID = *user.FamilyID
	}
	sub := h.broker.Subscribe(user.ID, familyID)
	defer sub.Close()

	// The server's WriteTimeout would cut the stream, so each write gets
	// its own deadline.
	rc := http.NewResponseController(w)
	extend := func() { _ = rc.SetWriteDeadline(time.Now().Add(2 * h.heartbeat)) }
	extend()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"user_id\":%q,\"family_id\":%q}\n\n", user.ID, familyID)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := e.ToJSON()
			if err != nil {
				continue
			}
			extend()
			fmt.Fprintf(w, "event: %s.%s\ndata: %s\n\n", e.EntityType, e.Action, data)
			flusher.Flush()
		case <-ticker.C:
			extend()
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
