package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Segment is one recognised utterance, partial or final
type Segment struct {
	Index      int       `json:"segment"`
	Text       string    `json:"text"`
	Tokens     []string  `json:"tokens,omitempty"`
	Timestamps []float64 `json:"timestamps,omitempty"`
	Partial    bool      `json:"partial"`
	Time       time.Time `json:"time"`
}

// Event represents a system event
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Options controls how segments are rendered
type Options struct {
	// Lowercase folds the text before writing
	Lowercase bool

	// Partials writes in-progress text; finals are always written
	Partials bool

	// ShowTimestamp prefixes text lines with the wall clock
	ShowTimestamp bool
}

// Formatter is the interface for output formatters
type Formatter interface {
	// WritePartial writes an in-progress segment. Formatters drop it when
	// partials are disabled.
	WritePartial(seg Segment) error

	// WriteFinal writes a finalised segment
	WriteFinal(seg Segment) error

	// WriteEvent writes a system event (device opened, push-to-talk, ...)
	WriteEvent(eventType, message string) error

	// Close finishes any line left open by a partial
	Close() error
}

// NewFormatter returns the formatter for format ("text" or "json")
func NewFormatter(format string, w io.Writer, opts Options) (Formatter, error) {
	switch format {
	case "", "text":
		return NewConsoleFormatter(w, opts), nil
	case "json":
		return NewJSONFormatter(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

func (o Options) text(s string) string {
	if o.Lowercase {
		return strings.ToLower(s)
	}
	return s
}

// JSONFormatter writes one JSON object per line
type JSONFormatter struct {
	mu      sync.Mutex
	opts    Options
	encoder *json.Encoder
	results []Segment
}

// NewJSONFormatter creates a new JSON lines formatter
func NewJSONFormatter(writer io.Writer, opts Options) *JSONFormatter {
	return &JSONFormatter{
		opts:    opts,
		encoder: json.NewEncoder(writer),
	}
}

// WritePartial writes a partial result
func (j *JSONFormatter) WritePartial(seg Segment) error {
	if !j.opts.Partials {
		return nil
	}
	seg.Partial = true
	return j.write(seg)
}

// WriteFinal writes a final result and keeps it for Results
func (j *JSONFormatter) WriteFinal(seg Segment) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	seg.Partial = false
	seg = j.prepare(seg)
	j.results = append(j.results, seg)
	return j.encoder.Encode(seg)
}

func (j *JSONFormatter) write(seg Segment) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(j.prepare(seg))
}

func (j *JSONFormatter) prepare(seg Segment) Segment {
	seg.Text = j.opts.text(seg.Text)
	if seg.Time.IsZero() {
		seg.Time = time.Now()
	}
	return seg
}

// WriteEvent writes a system event
func (j *JSONFormatter) WriteEvent(eventType, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(Event{
		Type:    eventType,
		Message: message,
		Time:    time.Now(),
	})
}

// Close closes the formatter
func (j *JSONFormatter) Close() error {
	return nil
}

// Results returns all final segments written so far
func (j *JSONFormatter) Results() []Segment {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.results
}
