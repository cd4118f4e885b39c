package nlweb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Stream framing.
const (
	dataMarker = "data:"
	sentinel   = "[DONE]"
)

// EventSource yields events until it returns io.EOF.
type EventSource interface {
	Recv() (Event, error)
}

// Decoder splits an event-stream into events.
// It holds no state across lines besides the closed flag and a drop counter.
type Decoder struct {
	reader  *bufio.Reader
	closed  bool
	dropped int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Recv returns the next event. It returns io.EOF once the [DONE] sentinel
// has been read or the input ends. Malformed lines are skipped.
func (d *Decoder) Recv() (Event, error) {
	for !d.closed {
		line, err := d.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Event{}, fmt.Errorf("read stream: %w", err)
		}
		if err != nil {
			// Last line may come without a trailing newline.
			d.closed = true
		}

		ev, ok, done := d.decodeLine(line)
		if done {
			d.closed = true
			break
		}
		if ok {
			return ev, nil
		}
	}
	return Event{}, io.EOF
}

// Dropped returns how many data lines could not be decoded.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// decodeLine parses a single line. done is true for the sentinel.
func (d *Decoder) decodeLine(line string) (ev Event, ok bool, done bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataMarker) {
		return Event{}, false, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataMarker))
	if payload == "" {
		return Event{}, false, false
	}
	if payload == sentinel {
		return Event{}, false, true
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(payload), &record); err != nil || record == nil {
		// Skip malformed events
		d.dropped++
		return Event{}, false, false
	}
	return NewEvent(record), true, false
}

// sliceSource replays a fixed list of events.
type sliceSource struct {
	events []Event
	pos    int
}

// Events returns an EventSource over a fixed list of events.
func Events(events ...Event) EventSource {
	return &sliceSource{events: events}
}

func (s *sliceSource) Recv() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
