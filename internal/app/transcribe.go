package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/output"
	"github.com/emmett/streamvox/internal/telemetry"
)

// ChunkDuration is how much audio Transcribe feeds per decode step
const ChunkDuration = 0.01

// Transcribe streams samples through a fresh decoder in 10 ms chunks, the
// way a live source would deliver them, and calls emit for every update.
// The last segment is flushed with InputFinished.
func Transcribe(ctx context.Context, rec *Recognizer, sampleRate float64, samples []float32, session *telemetry.Session, emit func(Update) error) error {
	dec, err := rec.NewDecoder()
	if err != nil {
		return err
	}
	seg := NewSegmenter(dec)

	chunk := int(sampleRate * ChunkDuration)
	if chunk <= 0 {
		return fmt.Errorf("invalid sample rate %v", sampleRate)
	}

	for start := 0; start < len(samples); start += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+chunk, len(samples))
		if err := dec.AcceptWaveform(sampleRate, samples[start:end]); err != nil {
			return err
		}
		session.RecordAudio(end - start)

		updates, err := seg.Poll()
		if err != nil {
			session.RecordFailure(err)
			return err
		}
		if err := emitAll(session, updates, emit); err != nil {
			return err
		}
	}

	last, ok, err := seg.Finish()
	if err != nil {
		session.RecordFailure(err)
		return err
	}
	stats := dec.Stats()
	session.RecordOverflow(stats.Buffer.Overflows, stats.Buffer.Dropped)
	if ok {
		return emitAll(session, []Update{last}, emit)
	}
	return nil
}

func emitAll(session *telemetry.Session, updates []Update, emit func(Update) error) error {
	for _, u := range updates {
		if u.Final {
			session.RecordSegment(u.Segment, u.Text)
		} else {
			session.RecordPartial(u.Text)
		}
		if emit == nil {
			continue
		}
		if err := emit(u); err != nil {
			return err
		}
	}
	return nil
}

// FileTranscriber transcribes WAV files to a formatter
type FileTranscriber struct {
	rec       *Recognizer
	formatter output.Formatter
	recorder  *telemetry.Recorder
}

// NewFileTranscriber creates a FileTranscriber
func NewFileTranscriber(rec *Recognizer, formatter output.Formatter, recorder *telemetry.Recorder) *FileTranscriber {
	return &FileTranscriber{rec: rec, formatter: formatter, recorder: recorder}
}

// TranscribeFile decodes one WAV file and writes its segments
func (f *FileTranscriber) TranscribeFile(ctx context.Context, path string) (telemetry.Summary, error) {
	samples, header, err := audio.ReadWAVFile(path)
	if err != nil {
		return telemetry.Summary{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rate := float64(header.SampleRate)
	session := f.recorder.StartSession(uuid.NewString(), "file", rate)
	err = Transcribe(ctx, f.rec, rate, samples, session, func(u Update) error {
		return writeUpdate(f.formatter, f.rec, u)
	})
	if cerr := f.formatter.Close(); err == nil {
		err = cerr
	}
	session.Finish(err)
	return session.Summary(), err
}

func writeUpdate(formatter output.Formatter, rec *Recognizer, u Update) error {
	seg := rec.Segment(u)
	if u.Final {
		return formatter.WriteFinal(seg)
	}
	return formatter.WritePartial(seg)
}
