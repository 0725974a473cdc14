package app

import (
	"strings"

	"github.com/emmett/streamvox/internal/decoder"
)

// Update is a change in the recognised text of the current segment
type Update struct {
	Segment int
	Text    string
	Final   bool
	Result  decoder.RecognitionResult
}

// Segmenter drives a decoder the way every front end does: decode, report
// changed text, and on an endpoint finalise the segment and start the next
// one without dropping audio already captured.
type Segmenter struct {
	dec   *decoder.Decoder
	index int
	last  string
}

// NewSegmenter wraps dec
func NewSegmenter(dec *decoder.Decoder) *Segmenter {
	return &Segmenter{dec: dec}
}

// Decoder returns the wrapped decoder
func (s *Segmenter) Decoder() *decoder.Decoder { return s.dec }

// Index is the number of segments finalised so far
func (s *Segmenter) Index() int { return s.index }

// Poll runs one decode step. It returns a partial update when the text
// changed and a final update when an endpoint closed a non-empty segment.
// A decode error means the decoder has already reset itself.
func (s *Segmenter) Poll() ([]Update, error) {
	if err := s.dec.Decode(); err != nil {
		s.last = ""
		return nil, err
	}

	var updates []Update
	res := s.dec.GetResult()
	if res.Text != s.last {
		s.last = res.Text
		if strings.TrimSpace(res.Text) != "" {
			updates = append(updates, Update{Segment: s.index, Text: res.Text, Result: res})
		}
	}

	if s.dec.IsEndpoint() {
		if u, ok := s.finalise(res); ok {
			updates = append(updates, u)
		}
		s.dec.NextSegment()
	}
	return updates, nil
}

// Cut flushes the captured audio, finalises the segment and resets the
// decoder for the next one, as when push-to-talk is released.
func (s *Segmenter) Cut() (Update, bool, error) {
	s.dec.InputFinished()
	if err := s.dec.Decode(); err != nil {
		s.last = ""
		s.dec.Reset()
		return Update{}, false, err
	}
	u, ok := s.finalise(s.dec.GetResult())
	s.dec.Reset()
	return u, ok, nil
}

// Finish flushes the end of the input and returns the last segment.
func (s *Segmenter) Finish() (Update, bool, error) {
	s.dec.InputFinished()
	if err := s.dec.Decode(); err != nil {
		s.last = ""
		return Update{}, false, err
	}
	u, ok := s.finalise(s.dec.GetResult())
	return u, ok, nil
}

func (s *Segmenter) finalise(res decoder.RecognitionResult) (Update, bool) {
	s.last = ""
	if strings.TrimSpace(res.Text) == "" {
		return Update{}, false
	}
	u := Update{Segment: s.index, Text: res.Text, Final: true, Result: res}
	s.index++
	return u, true
}
