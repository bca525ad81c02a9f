package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventWriter writes server-sent events to a streaming response.
type EventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewEventWriter sets the event-stream headers and flushes them. It fails if
// the response cannot be flushed.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &EventWriter{w: w, rc: rc}, nil
}

// Send writes one named event with a JSON payload and flushes it.
func (e *EventWriter) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return e.rc.Flush()
}

// Comment writes an SSE comment line, used as a keep-alive.
func (e *EventWriter) Comment(text string) error {
	if _, err := fmt.Fprintf(e.w, ": %s\n\n", text); err != nil {
		return err
	}
	return e.rc.Flush()
}
