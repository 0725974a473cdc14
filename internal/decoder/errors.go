package decoder

import (
	"errors"

	"github.com/emmett/streamvox/internal/audio"
)

var (
	// ErrInsufficientFrames means a full encoder chunk is not buffered yet.
	// Decode treats it as "come back later".
	ErrInsufficientFrames = errors.New("insufficient feature frames for an encoder chunk")

	// ErrStreamExhausted is returned by Step after the final padded chunk
	ErrStreamExhausted = errors.New("encoder stream exhausted")

	// ErrInvalidConfiguration is returned by constructors for unusable settings
	ErrInvalidConfiguration = errors.New("invalid decoder configuration")

	// ErrModelInference wraps any failure reported by the model. The session
	// is reset when Decode returns it.
	ErrModelInference = errors.New("model inference failed")

	// ErrInputFinished is returned when audio arrives after InputFinished
	ErrInputFinished = errors.New("input already finished")

	// ErrBufferOverflow marks dropped audio. It is counted and logged, never
	// returned from Decode.
	ErrBufferOverflow = audio.ErrBufferOverflow
)
