// Package app wires the decoder to its front ends: microphone sessions,
// file transcription and the model/device commands.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/emmett/streamvox/internal/config"
	"github.com/emmett/streamvox/internal/decoder"
	"github.com/emmett/streamvox/internal/feature"
	"github.com/emmett/streamvox/internal/models"
	"github.com/emmett/streamvox/internal/output"
)

// Recognizer is an opened model bundle that hands out decoders. The model
// and symbol table are shared; every decoder gets its own extractor.
type Recognizer struct {
	Name     string
	loaded   *models.Loaded
	decoder  decoder.Config
	features feature.Options
	logger   *log.Logger
}

// OpenRecognizer opens the named bundle from store, falling back to the
// store's default model. The builtin stub is installed on first use.
func OpenRecognizer(cfg *config.Config, store *models.Store, name string, logger *log.Logger) (*Recognizer, error) {
	if logger == nil {
		logger = log.Default()
	}

	if name == "" {
		name = cfg.Model.Default
	}
	if name == "" {
		var err error
		if name, err = store.DefaultModel(); err != nil {
			return nil, fmt.Errorf("failed to get default model: %w", err)
		}
	}

	installed, err := store.IsInstalled(name)
	if err != nil {
		return nil, fmt.Errorf("failed to check for model: %w", err)
	}
	if !installed {
		entry := models.Find(name)
		if entry == nil || !entry.Builtin() {
			return nil, fmt.Errorf("model %q is not installed; run: streamvox models download %s", name, name)
		}
		logger.Info("installing builtin model", "model", name, "dir", store.Dir)
		if err := store.Install(name, nil); err != nil {
			return nil, err
		}
	}

	loaded, err := store.Open(name)
	if err != nil {
		return nil, err
	}

	features := cfg.FeatureOptions()
	features.NumBins = loaded.Model.Meta().FeatureDim
	if loaded.Bundle.SampleRate > 0 {
		features.SampleRate = loaded.Bundle.SampleRate
	}
	if err := features.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}

	dec := cfg.DecoderConfig()
	dec.SampleRate = features.SampleRate
	dec.FrameShift = features.FrameShiftSeconds()
	if cfg.Decoder.BufferSeconds > 0 {
		dec.BufferCeiling = int(cfg.Decoder.BufferSeconds * features.SampleRate)
	}

	meta := loaded.Model.Meta()
	logger.Info("model loaded",
		"model", name,
		"backend", loaded.Bundle.Backend,
		"vocab", meta.VocabSize,
		"feature_dim", meta.FeatureDim,
		"method", dec.Method,
	)

	return &Recognizer{
		Name:     name,
		loaded:   loaded,
		decoder:  dec,
		features: features,
		logger:   logger,
	}, nil
}

// SampleRate is the rate the decoders expect
func (r *Recognizer) SampleRate() float64 {
	return r.features.SampleRate
}

// DecoderConfig returns the decoder settings in use
func (r *Recognizer) DecoderConfig() decoder.Config {
	return r.decoder
}

// NewDecoder creates an independent decoding session
func (r *Recognizer) NewDecoder() (*decoder.Decoder, error) {
	fbank, err := feature.NewFbank(r.features)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}
	return decoder.New(r.decoder, r.loaded.Model, fbank, r.loaded.Symbols, decoder.WithLogger(r.logger))
}

// Segment converts an update for the output formatters
func (r *Recognizer) Segment(u Update) output.Segment {
	tokens := make([]string, len(u.Result.Tokens))
	for i, id := range u.Result.Tokens {
		tokens[i] = r.loaded.Symbols.Symbol(id)
	}
	return output.Segment{
		Index:      u.Segment,
		Text:       u.Text,
		Tokens:     tokens,
		Timestamps: u.Result.Timestamps,
		Partial:    !u.Final,
		Time:       time.Now(),
	}
}
