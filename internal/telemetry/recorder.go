// Package telemetry keeps process-wide recognition counters and per-session
// summaries for the front ends.
package telemetry

import (
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// Recorder tracks totals across every recognition session of the process.
type Recorder struct {
	log *log.Logger

	totalSessions  atomic.Uint64
	activeSessions atomic.Int64
	totalSamples   atomic.Uint64
	totalPartials  atomic.Uint64
	totalSegments  atomic.Uint64
	totalOverflows atomic.Uint64
	droppedSamples atomic.Uint64
	totalFailures  atomic.Uint64
	failedSessions atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalSessions  uint64
	ActiveSessions int64
	TotalSamples   uint64
	TotalPartials  uint64
	TotalSegments  uint64
	TotalOverflows uint64
	DroppedSamples uint64
	TotalFailures  uint64
	FailedSessions uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		log: logger.WithPrefix("telemetry"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalSessions:  r.totalSessions.Load(),
		ActiveSessions: r.activeSessions.Load(),
		TotalSamples:   r.totalSamples.Load(),
		TotalPartials:  r.totalPartials.Load(),
		TotalSegments:  r.totalSegments.Load(),
		TotalOverflows: r.totalOverflows.Load(),
		DroppedSamples: r.droppedSamples.Load(),
		TotalFailures:  r.totalFailures.Load(),
		FailedSessions: r.failedSessions.Load(),
	}
}

// Session accumulates statistics for one recognition session. It is owned
// by the goroutine driving the decoder.
type Session struct {
	recorder *Recorder
	log      *log.Logger

	id     string
	source string

	started    time.Time
	samples    uint64
	sampleRate float64
	partials   int
	segments   int
	words      int
	overflows  uint64
	dropped    uint64
	failures   int
	closed     atomic.Bool
}

// Summary is the end-of-session report.
type Summary struct {
	ID        string
	Source    string
	Duration  time.Duration
	Audio     time.Duration
	Partials  int
	Segments  int
	Words     int
	Overflows uint64
	Dropped   uint64
	Failures  int
}

// RealTimeFactor is processing time over audio time; zero without audio.
func (s Summary) RealTimeFactor() float64 {
	if s.Audio <= 0 {
		return 0
	}
	return s.Duration.Seconds() / s.Audio.Seconds()
}

// StartSession registers a new session. source names the front end
// ("mic", "file", "grpc", "mcp").
func (r *Recorder) StartSession(id, source string, sampleRate float64) *Session {
	if r == nil {
		return nil
	}

	r.totalSessions.Add(1)
	r.activeSessions.Add(1)

	return &Session{
		recorder:   r,
		log:        r.log.With("session", id, "source", source),
		id:         id,
		source:     source,
		started:    time.Now(),
		sampleRate: sampleRate,
	}
}

// RecordAudio counts samples handed to the decoder.
func (s *Session) RecordAudio(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.samples += uint64(n)
	s.recorder.totalSamples.Add(uint64(n))
}

// RecordPartial counts a changed partial result.
func (s *Session) RecordPartial(text string) {
	if s == nil {
		return
	}
	s.partials++
	s.recorder.totalPartials.Add(1)
	s.log.Debug("partial", "runes", utf8.RuneCountInString(text))
}

// RecordSegment counts a finalised segment.
func (s *Session) RecordSegment(index int, text string) {
	if s == nil {
		return
	}
	s.segments++
	s.words += countWords(text)
	s.recorder.totalSegments.Add(1)
	s.log.Info("segment", "index", index, "runes", utf8.RuneCountInString(text))
}

// RecordOverflow folds the buffer's cumulative counters into the session.
// Only growth since the previous call is added to the process totals.
func (s *Session) RecordOverflow(overflows, dropped uint64) {
	if s == nil {
		return
	}
	if overflows > s.overflows {
		s.recorder.totalOverflows.Add(overflows - s.overflows)
		s.log.Warn("audio dropped", "overflows", overflows, "dropped_samples", dropped)
		s.overflows = overflows
	}
	if dropped > s.dropped {
		s.recorder.droppedSamples.Add(dropped - s.dropped)
		s.dropped = dropped
	}
}

// RecordFailure counts a decode failure that reset the session.
func (s *Session) RecordFailure(err error) {
	if s == nil {
		return
	}
	s.failures++
	s.recorder.totalFailures.Add(1)
	s.log.Error("decode failure", "err", err)
}

// Summary reports what the session has recorded so far.
func (s *Session) Summary() Summary {
	if s == nil {
		return Summary{}
	}
	var audio time.Duration
	if s.sampleRate > 0 {
		audio = time.Duration(float64(s.samples) / s.sampleRate * float64(time.Second))
	}
	return Summary{
		ID:        s.id,
		Source:    s.source,
		Duration:  time.Since(s.started),
		Audio:     audio,
		Partials:  s.partials,
		Segments:  s.segments,
		Words:     s.words,
		Overflows: s.overflows,
		Dropped:   s.dropped,
		Failures:  s.failures,
	}
}

// Finish logs a summary and updates the active session count. Only the
// first call has an effect.
func (s *Session) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	defer s.recorder.activeSessions.Add(-1)

	sum := s.Summary()
	args := []any{
		"duration_ms", sum.Duration.Milliseconds(),
		"audio_ms", sum.Audio.Milliseconds(),
		"segments", sum.Segments,
		"partials", sum.Partials,
		"overflows", sum.Overflows,
	}

	if err != nil {
		s.recorder.failedSessions.Add(1)
		s.log.Error("session ended with error", append(args, "err", err)...)
		return
	}
	s.log.Info("session ended", args...)
}

func countWords(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
