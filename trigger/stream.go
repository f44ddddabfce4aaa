package trigger

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// StreamEnvelope is the wire shape StreamAdapter expects from its
// websocket source: an already-typed event, not a raw byte blob.
type StreamEnvelope struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Data     interface{}       `json:"data"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StreamAdapter consumes a *websocket.Conn as an inbound event source,
// enforcing a read deadline and a graceful close on an inbound read
// loop.
type StreamAdapter struct {
	conn        *websocket.Conn
	source      string
	readTimeout time.Duration
}

// NewStreamAdapter wraps conn, stamping every Event's Source with
// source.
func NewStreamAdapter(conn *websocket.Conn, source string, readTimeout time.Duration) *StreamAdapter {
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &StreamAdapter{conn: conn, source: source, readTimeout: readTimeout}
}

// Run reads envelopes until the connection closes or ctx is cancelled.
func (s *StreamAdapter) Run(ctx context.Context, emit func(Event)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return err
		}
		var env StreamEnvelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("trigger: stream %s read failed: %v", s.source, err)
			return err
		}
		emit(Event{
			ID:        env.ID,
			Type:      env.Type,
			Source:    s.source,
			Timestamp: time.Now(),
			Data:      env.Data,
			Metadata:  env.Metadata,
		})
	}
}
