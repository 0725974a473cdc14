package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/models"
)

// TranscribeArgs are the transcribe_audio arguments
type TranscribeArgs struct {
	Audio      string  `json:"audio" jsonschema:"base64 encoded audio"`
	Format     string  `json:"format,omitempty" jsonschema:"pcm16 (little-endian mono, the default) or wav"`
	SampleRate float64 `json:"sample_rate,omitempty" jsonschema:"sample rate of pcm16 audio in Hz (default 16000)"`
	Model      string  `json:"model,omitempty" jsonschema:"model name, the server default when empty"`
}

// SegmentResult is one recognised segment
type SegmentResult struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Timestamps []float64 `json:"timestamps,omitempty"`
}

// TranscribeResult is the structured transcribe_audio output
type TranscribeResult struct {
	Model    string          `json:"model"`
	Text     string          `json:"text"`
	Segments []SegmentResult `json:"segments"`
	Duration float64         `json:"duration_seconds"`
}

// ListModelsArgs takes no arguments
type ListModelsArgs struct{}

// ModelInfo describes one model
type ModelInfo struct {
	Name        string `json:"name"`
	Installed   bool   `json:"installed"`
	Default     bool   `json:"default"`
	Description string `json:"description,omitempty"`
}

// ListModelsResult is the structured list_models output
type ListModelsResult struct {
	Models []ModelInfo `json:"models"`
}

func (s *Server) handleTranscribeAudio(ctx context.Context, req *sdk.CallToolRequest, args TranscribeArgs) (*sdk.CallToolResult, TranscribeResult, error) {
	data, err := base64.StdEncoding.DecodeString(args.Audio)
	if err != nil {
		return nil, TranscribeResult{}, fmt.Errorf("invalid base64 audio: %w", err)
	}

	var samples []float32
	rate := args.SampleRate
	switch strings.ToLower(args.Format) {
	case "", "pcm16":
		if rate == 0 {
			rate = 16000
		}
		samples, err = audio.DecodePCM16LE(nil, data)
	case "wav":
		var header audio.WAVHeader
		samples, header, err = audio.ReadWAV(bytes.NewReader(data))
		rate = float64(header.SampleRate)
	default:
		err = fmt.Errorf("unknown format %q", args.Format)
	}
	if err != nil {
		return nil, TranscribeResult{}, fmt.Errorf("invalid audio: %w", err)
	}
	if rate <= 0 {
		return nil, TranscribeResult{}, fmt.Errorf("invalid sample rate %v", rate)
	}

	rec, err := s.recognizer(args.Model)
	if err != nil {
		return nil, TranscribeResult{}, err
	}

	result := TranscribeResult{
		Model:    rec.Name,
		Segments: []SegmentResult{},
		Duration: float64(len(samples)) / rate,
	}
	session := s.recorder.StartSession(uuid.NewString(), "mcp", rate)
	err = app.Transcribe(ctx, rec, rate, samples, session, func(u app.Update) error {
		if u.Final {
			result.Segments = append(result.Segments, SegmentResult{
				Index:      u.Segment,
				Text:       u.Text,
				Timestamps: u.Result.Timestamps,
			})
		}
		return nil
	})
	session.Finish(err)
	if err != nil {
		return nil, TranscribeResult{}, fmt.Errorf("transcription failed: %w", err)
	}

	texts := make([]string, len(result.Segments))
	content := make([]sdk.Content, 0, len(result.Segments)+1)
	for i, seg := range result.Segments {
		texts[i] = seg.Text
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("%d: %s", seg.Index, seg.Text)})
	}
	result.Text = strings.Join(texts, " ")
	if len(content) == 0 {
		content = append(content, &sdk.TextContent{Text: "(no speech recognised)"})
	}

	return &sdk.CallToolResult{Content: content}, result, nil
}

func (s *Server) handleListModels(ctx context.Context, req *sdk.CallToolRequest, args ListModelsArgs) (*sdk.CallToolResult, ListModelsResult, error) {
	installed, err := s.store.List()
	if err != nil {
		return nil, ListModelsResult{}, fmt.Errorf("failed to list models: %w", err)
	}
	def, _ := s.store.DefaultModel()

	seen := make(map[string]bool)
	result := ListModelsResult{Models: []ModelInfo{}}
	for _, name := range installed {
		seen[name] = true
		info := ModelInfo{Name: name, Installed: true, Default: name == def}
		if b, err := s.store.LoadBundle(name); err == nil {
			info.Description = b.Description
		}
		result.Models = append(result.Models, info)
	}
	for _, e := range models.Catalog {
		if !seen[e.Name] {
			result.Models = append(result.Models, ModelInfo{Name: e.Name, Default: e.Name == def, Description: e.Description})
		}
	}

	content := []sdk.Content{
		&sdk.TextContent{Text: fmt.Sprintf("Installed models (%d):", len(installed))},
	}
	for _, m := range result.Models {
		line := "- " + m.Name
		if m.Default {
			line += " [default]"
		}
		if !m.Installed {
			line += " (not installed)"
		}
		content = append(content, &sdk.TextContent{Text: line})
	}
	return &sdk.CallToolResult{Content: content}, result, nil
}
