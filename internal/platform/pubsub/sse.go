package pubsub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Handler streams the change feed to terminals over server-sent events.
// Clients pick collections with repeated ?collection= parameters and are
// expected to reload their snapshot on reconnect before trusting deltas.
type Handler struct {
	broker *Broker
	logger *slog.Logger
}

// NewHandler builds the feed handler.
func NewHandler(broker *Broker, logger *slog.Logger) *Handler {
	return &Handler{broker: broker, logger: logger}
}

const heartbeatInterval = 25 * time.Second

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	collections := r.URL.Query()["collection"]
	if len(collections) == 0 {
		collections = []string{CollectionCatalog, CollectionOrders, CollectionSelections}
	}

	events, err := h.broker.Subscribe(r.Context(), collections...)
	if err != nil {
		h.logger.Error("feed subscribe", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("feed encode", slog.Any("error", err))
				continue
			}
			if _, err := w.Write([]byte("event: " + event.Collection + "\ndata: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
