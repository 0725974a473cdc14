package grpc

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/telemetry"
)

// RecognizerService streams audio through one decoder per call
type RecognizerService struct {
	rec      *app.Recognizer
	recorder *telemetry.Recorder
	logger   *log.Logger
}

// NewRecognizerService creates the service
func NewRecognizerService(rec *app.Recognizer, recorder *telemetry.Recorder, logger *log.Logger) *RecognizerService {
	if logger == nil {
		logger = log.Default()
	}
	return &RecognizerService{rec: rec, recorder: recorder, logger: logger.WithPrefix("grpc")}
}

// Recognize reads PCM16 chunks until the client half-closes. A partial is
// sent whenever the text changes and a final when a segment ends; the
// session resets after every final.
func (s *RecognizerService) Recognize(stream Recognizer_RecognizeServer) error {
	ctx := stream.Context()

	rate, err := sampleRate(ctx, s.rec.SampleRate())
	if err != nil {
		return err
	}

	id := uuid.NewString()
	if err := stream.SetHeader(metadata.Pairs(SessionHeader, id)); err != nil {
		return err
	}

	dec, err := s.rec.NewDecoder()
	if err != nil {
		return status.Errorf(codes.Internal, "failed to create decoder: %v", err)
	}
	seg := app.NewSegmenter(dec)
	session := s.recorder.StartSession(id, "grpc", rate)
	s.logger.Debug("stream opened", "session", id, "sample_rate", rate)

	send := func(u app.Update) error {
		msg, err := response(id, s.rec, u)
		if err != nil {
			return err
		}
		if u.Final {
			session.RecordSegment(u.Segment, u.Text)
		} else {
			session.RecordPartial(u.Text)
		}
		return stream.Send(msg)
	}

	err = s.loop(stream, seg, session, rate, send)
	session.Finish(err)
	return err
}

func (s *RecognizerService) loop(stream Recognizer_RecognizeServer, seg *app.Segmenter,
	session *telemetry.Session, rate float64, send func(app.Update) error) error {
	var samples []float32
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			last, ok, err := seg.Finish()
			if err != nil {
				session.RecordFailure(err)
				return status.Errorf(codes.Internal, "%v", err)
			}
			if ok {
				return send(last)
			}
			return nil
		}
		if err != nil {
			return err
		}

		samples, err = audio.DecodePCM16LE(samples[:0], chunk.GetValue())
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "%v", err)
		}
		if err := seg.Decoder().AcceptWaveform(rate, samples); err != nil {
			return status.Errorf(codes.FailedPrecondition, "%v", err)
		}
		session.RecordAudio(len(samples))

		updates, err := seg.Poll()
		if err != nil {
			// the decoder reset itself; the stream carries on with a new segment
			session.RecordFailure(err)
			s.logger.Warn("decode failed", "err", err)
			continue
		}
		for _, u := range updates {
			if err := send(u); err != nil {
				return err
			}
		}
	}
}

func sampleRate(ctx context.Context, fallback float64) (float64, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return fallback, nil
	}
	values := md.Get(SampleRateHeader)
	if len(values) == 0 {
		return fallback, nil
	}
	rate, err := strconv.ParseFloat(values[0], 64)
	if err != nil || rate <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s %q", SampleRateHeader, values[0])
	}
	return rate, nil
}

func response(session string, rec *app.Recognizer, u app.Update) (*structpb.Struct, error) {
	seg := rec.Segment(u)
	tokens := make([]any, len(seg.Tokens))
	for i, t := range seg.Tokens {
		tokens[i] = t
	}
	timestamps := make([]any, len(seg.Timestamps))
	for i, t := range seg.Timestamps {
		timestamps[i] = t
	}
	return structpb.NewStruct(map[string]any{
		FieldSession:    session,
		FieldSegment:    seg.Index,
		FieldText:       seg.Text,
		FieldFinal:      u.Final,
		FieldTokens:     tokens,
		FieldTimestamps: timestamps,
	})
}

var _ RecognizerServer = (*RecognizerService)(nil)
