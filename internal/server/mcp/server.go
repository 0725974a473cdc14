// Package mcp exposes the recogniser as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/config"
	"github.com/emmett/streamvox/internal/models"
	"github.com/emmett/streamvox/internal/telemetry"
)

// Config holds the server identity and model selection
type Config struct {
	ServerName    string
	ServerVersion string
	DefaultModel  string
}

// Server serves transcribe_audio and list_models over MCP
type Server struct {
	config    Config
	app       *config.Config
	store     *models.Store
	recorder  *telemetry.Recorder
	logger    *log.Logger
	mcpServer *sdk.Server

	mu          sync.Mutex
	recognizers map[string]*app.Recognizer
}

// NewServer creates the server and opens the default model so start-up
// fails early when it is missing.
func NewServer(cfg Config, appCfg *config.Config, store *models.Store, recorder *telemetry.Recorder, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		config:      cfg,
		app:         appCfg,
		store:       store,
		recorder:    recorder,
		logger:      logger.WithPrefix("mcp"),
		recognizers: make(map[string]*app.Recognizer),
	}

	if _, err := s.recognizer(cfg.DefaultModel); err != nil {
		return nil, err
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

// recognizer returns the opened recogniser for name, opening it once
func (s *Server) recognizer(name string) (*app.Recognizer, error) {
	if name == "" {
		name = s.config.DefaultModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recognizers[name]; ok {
		return rec, nil
	}
	rec, err := app.OpenRecognizer(s.app, s.store, name, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	s.recognizers[name] = rec
	if name == "" {
		s.recognizers[rec.Name] = rec
	}
	return rec, nil
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "transcribe_audio",
		Description: "Transcribe base64 audio (16-bit PCM or WAV) into endpoint-separated segments",
	}, s.handleTranscribeAudio)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "list_models",
		Description: "List installed and installable recognition models",
	}, s.handleListModels)
}
