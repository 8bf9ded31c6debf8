package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/diewo77/invoicegen/auth"
	"github.com/diewo77/invoicegen/httpx"
	"github.com/sirupsen/logrus"
)

// EventsHandler streams the caller's session events as Server-Sent Events.
type EventsHandler struct {
	broker    auth.Broker
	log       logrus.FieldLogger
	heartbeat time.Duration
}

func NewEventsHandler(broker auth.Broker, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{broker: broker, log: log, heartbeat: 25 * time.Second}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := h.broker.Subscribe(r.Context(), userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.WithError(err).Warn("encode session event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
