// Package sse writes Server-Sent Events to one client.
//
//	stream, err := sse.New(w, r)
//	if err != nil {
//	    return
//	}
//	for {
//	    select {
//	    case <-stream.Done():
//	        return
//	    case v := <-updates:
//	        if err := stream.Send("view", v); err != nil {
//	            return
//	        }
//	    }
//	}
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var (
	// ErrUnsupported is returned when the writer cannot flush.
	ErrUnsupported = errors.New("sse: streaming unsupported")
	// ErrClosed is returned by writes after the client went away.
	ErrClosed = errors.New("sse: stream closed")
)

// Stream is an open event stream. Send is safe for concurrent use.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	closed  bool
}

// New sets the event-stream headers and flushes them. It writes a 500 and
// returns ErrUnsupported if w cannot flush.
func New(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil, ErrUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}, nil
}

// Done is closed when the client goes away.
func (s *Stream) Done() <-chan struct{} { return s.r.Context().Done() }

// Send writes a named event with a JSON payload.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", event, err)
	}
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

// Retry tells the client how long to wait before reconnecting.
func (s *Stream) Retry(ms int) error {
	return s.write(fmt.Sprintf("retry: %d\n\n", ms))
}

// Comment writes a comment line, used as a heartbeat.
func (s *Stream) Comment(msg string) error {
	return s.write(fmt.Sprintf(": %s\n\n", msg))
}

func (s *Stream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.r.Context().Err() != nil {
		s.closed = true
		return ErrClosed
	}
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}
