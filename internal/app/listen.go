package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/input"
	"github.com/emmett/streamvox/internal/output"
	"github.com/emmett/streamvox/internal/telemetry"
)

// ListenConfig holds configuration for a microphone session
type ListenConfig struct {
	// PollInterval is how often the consumer decodes (20 ms by default)
	PollInterval time.Duration

	// PTTHotkey enables push-to-talk when set, e.g. "ctrl+shift+space"
	PTTHotkey string

	// PTTMode is "hold" or "toggle"
	PTTMode string
}

// Listener runs live recognition on a capture device. The capture callback
// only hands samples to the decoder; decoding happens on the poll loop.
type Listener struct {
	rec       *Recognizer
	capturer  audio.Capturer
	formatter output.Formatter
	recorder  *telemetry.Recorder
	logger    *log.Logger
	cfg       ListenConfig
}

// NewListener creates a Listener reading from capturer
func NewListener(rec *Recognizer, capturer audio.Capturer, formatter output.Formatter, recorder *telemetry.Recorder, logger *log.Logger, cfg ListenConfig) *Listener {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	return &Listener{
		rec:       rec,
		capturer:  capturer,
		formatter: formatter,
		recorder:  recorder,
		logger:    logger.WithPrefix("listen"),
		cfg:       cfg,
	}
}

// Run captures and decodes until ctx is cancelled. The open segment is
// flushed before returning.
func (l *Listener) Run(ctx context.Context) (telemetry.Summary, error) {
	dec, err := l.rec.NewDecoder()
	if err != nil {
		return telemetry.Summary{}, err
	}
	seg := NewSegmenter(dec)
	rate := l.capturer.SampleRate()
	session := l.recorder.StartSession(uuid.NewString(), "mic", rate)

	var talking atomic.Bool
	talking.Store(l.cfg.PTTHotkey == "")
	cut := make(chan struct{}, 1)

	if l.cfg.PTTHotkey != "" {
		mode, err := input.ParseMode(l.cfg.PTTMode)
		if err != nil {
			return telemetry.Summary{}, err
		}
		ptt := input.NewPushToTalk(mode, func(on bool) {
			talking.Store(on)
			if on {
				l.formatter.WriteEvent("ptt", "talking")
				return
			}
			l.formatter.WriteEvent("ptt", "released")
			select {
			case cut <- struct{}{}:
			default:
			}
		})
		if err := ptt.Start(ctx, l.cfg.PTTHotkey); err != nil {
			return telemetry.Summary{}, err
		}
		defer ptt.Stop()
		l.formatter.WriteEvent("ptt", fmt.Sprintf("hold %s to talk", l.cfg.PTTHotkey))
	}

	var captured atomic.Int64
	var recorded int64 // owned by the poll loop until g.Wait returns
	sink := func(samples []float32) {
		if !talking.Load() {
			return
		}
		if err := dec.AcceptWaveform(rate, samples); err == nil {
			captured.Add(int64(len(samples)))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := l.capturer.Start(gctx, sink); err != nil {
		return telemetry.Summary{}, fmt.Errorf("failed to start capture: %w", err)
	}
	l.logger.Info("listening", "sample_rate", rate, "poll", l.cfg.PollInterval)

	g.Go(func() error {
		defer l.capturer.Stop()

		ticker := time.NewTicker(l.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil

			case <-cut:
				u, ok, err := seg.Cut()
				if err != nil {
					session.RecordFailure(err)
					continue
				}
				if ok {
					if err := l.emit(session, u); err != nil {
						return err
					}
				}

			case <-ticker.C:
				n := captured.Load()
				session.RecordAudio(int(n - recorded))
				recorded = n

				updates, err := seg.Poll()
				if err != nil {
					// the decoder has reset itself; keep listening
					session.RecordFailure(err)
					continue
				}
				for _, u := range updates {
					if err := l.emit(session, u); err != nil {
						return err
					}
				}
				stats := dec.Stats()
				session.RecordOverflow(stats.Buffer.Overflows, stats.Buffer.Dropped)
			}
		}
	})

	err = g.Wait()
	if err == nil {
		// stop delivering before the final flush
		l.capturer.Stop()
		session.RecordAudio(int(captured.Load() - recorded))
		var last Update
		var ok bool
		last, ok, err = seg.Finish()
		if err != nil {
			session.RecordFailure(err)
		} else if ok {
			err = l.emit(session, last)
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.formatter.Close()
	session.Finish(err)
	return session.Summary(), err
}

func (l *Listener) emit(session *telemetry.Session, u Update) error {
	return emitAll(session, []Update{u}, func(u Update) error {
		return writeUpdate(l.formatter, l.rec, u)
	})
}
