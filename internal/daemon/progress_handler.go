package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orthodeck/internal/logging"
)

const keepAliveInterval = 15 * time.Second

// handleProgress streams progress events over SSE. Every subscriber first
// receives a synthetic connecting event; the stream closes after the next
// terminal event.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, events := s.daemon.hub.Subscribe()
	defer s.daemon.hub.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				s.log().Error("failed to encode progress event",
					logging.String(logging.FieldSubscriber, id),
					logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			if event.Terminal() {
				return
			}
		}
	}
}
