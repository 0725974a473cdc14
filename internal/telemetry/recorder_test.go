package telemetry

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestRecorderSnapshot(t *testing.T) {
	recorder := NewRecorder(log.New(io.Discard))
	if snapshot := recorder.Snapshot(); snapshot.TotalSessions != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}

	session := recorder.StartSession("session-1", "mic", 16000)
	if session == nil {
		t.Fatal("expected session metrics")
	}

	session.RecordAudio(16000)
	session.RecordAudio(8000)
	session.RecordPartial("hel")
	session.RecordPartial("hello")
	session.RecordSegment(0, "hello  world")
	session.RecordOverflow(1, 100)
	session.RecordOverflow(1, 100)
	session.RecordOverflow(3, 250)

	sum := session.Summary()
	if sum.Audio != 1500*time.Millisecond {
		t.Fatalf("expected 1.5 s of audio, got %v", sum.Audio)
	}
	if sum.Words != 2 || sum.Segments != 1 || sum.Partials != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	session.Finish(nil)

	snapshot := recorder.Snapshot()
	if snapshot.TotalSessions != 1 || snapshot.ActiveSessions != 0 {
		t.Fatalf("unexpected session counts %+v", snapshot)
	}
	if snapshot.TotalSamples != 24000 {
		t.Fatalf("unexpected TotalSamples: %d", snapshot.TotalSamples)
	}
	if snapshot.TotalPartials != 2 || snapshot.TotalSegments != 1 {
		t.Fatalf("unexpected transcript counts %+v", snapshot)
	}
	if snapshot.TotalOverflows != 3 || snapshot.DroppedSamples != 250 {
		t.Fatalf("expected overflow deltas to add up, got %+v", snapshot)
	}

	session.Finish(nil)
	if again := recorder.Snapshot(); again.ActiveSessions != 0 {
		t.Fatalf("second Finish changed the snapshot: %+v", again)
	}
}

func TestSessionFinishWithError(t *testing.T) {
	recorder := NewRecorder(log.New(io.Discard))
	session := recorder.StartSession("s", "grpc", 16000)
	session.RecordFailure(errors.New("boom"))
	session.Finish(io.EOF)

	snapshot := recorder.Snapshot()
	if snapshot.TotalFailures != 1 || snapshot.FailedSessions != 1 {
		t.Fatalf("unexpected failure counts %+v", snapshot)
	}
	if snapshot.ActiveSessions != 0 {
		t.Fatalf("expected zero active sessions, got %d", snapshot.ActiveSessions)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var recorder *Recorder
	session := recorder.StartSession("x", "file", 16000)
	session.RecordAudio(10)
	session.RecordSegment(0, "a")
	session.Finish(nil)
	if session.Summary().Segments != 0 {
		t.Fatal("expected an empty summary from a nil session")
	}
	if recorder.Snapshot().TotalSessions != 0 {
		t.Fatal("expected an empty snapshot from a nil recorder")
	}
}

func TestRealTimeFactor(t *testing.T) {
	s := Summary{Duration: time.Second, Audio: 4 * time.Second}
	if s.RealTimeFactor() != 0.25 {
		t.Fatalf("expected 0.25, got %v", s.RealTimeFactor())
	}
	if (Summary{Duration: time.Second}).RealTimeFactor() != 0 {
		t.Fatal("expected 0 without audio")
	}
}
