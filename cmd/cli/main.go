package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/emmett/streamvox/internal/app"
	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/config"
	"github.com/emmett/streamvox/internal/models"
	"github.com/emmett/streamvox/internal/output"
	"github.com/emmett/streamvox/internal/telemetry"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	cfg    *config.Config
	logger *log.Logger
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (default: ~/.streamvoxrc or /etc/streamvox/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("models-dir", "", "Model store directory (default: ./models)")

	for _, c := range []*cobra.Command{listenCmd, transcribeCmd} {
		c.Flags().String("model", "", "Model bundle to use (default: the store's default model)")
		c.Flags().String("format", "text", "Output format: text, json")
		c.Flags().String("output", "", "Output file (default: stdout)")
		c.Flags().Bool("partials", true, "Print partial results while a segment is open")
		c.Flags().String("method", "", "Decoding method: modified_beam_search, greedy_search")
		c.Flags().Int("beam-size", 0, "Active paths kept by modified beam search")
	}
	listenCmd.Flags().String("device", "", "Audio input device ID or name (see 'streamvox devices')")
	listenCmd.Flags().String("ptt", "", "Push-to-talk hotkey, e.g. ctrl+shift+space")
	listenCmd.Flags().String("ptt-mode", "hold", "Push-to-talk mode: hold, toggle")

	modelsDownloadCmd.Flags().String("url", "", "Zip archive to fetch instead of the catalog entry")

	modelsCmd.AddCommand(modelsListCmd, modelsDownloadCmd, modelsSetDefaultCmd, modelsSelectCmd)
	rootCmd.AddCommand(listenCmd, transcribeCmd, devicesCmd, modelsCmd, versionCmd)
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")

	var err error
	cfg, err = config.LoadWithFallback(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if dir, _ := rootCmd.PersistentFlags().GetString("models-dir"); dir != "" {
		cfg.Model.Dir = dir
	}
	logger = cfg.NewLogger()
}

var rootCmd = &cobra.Command{
	Use:           "streamvox",
	Short:         "Streaming speech recognition with a transducer decoder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe the microphone until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE.wav...",
	Short: "Transcribe WAV files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranscribe,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.NewDeviceManager(cmd.OutOrStdout()).ListDevices()
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model bundles",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog and installed models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := modelManager(cmd)
		if err != nil {
			return err
		}
		return mgr.ListModels()
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download NAME",
	Short: "Install a model bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := modelManager(cmd)
		if err != nil {
			return err
		}
		url, _ := cmd.Flags().GetString("url")
		return mgr.Download(args[0], url)
	},
}

var modelsSetDefaultCmd = &cobra.Command{
	Use:   "set-default NAME",
	Short: "Set the default model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := modelManager(cmd)
		if err != nil {
			return err
		}
		return mgr.SetDefault(args[0])
	},
}

var modelsSelectCmd = &cobra.Command{
	Use:   "select",
	Short: "Interactively pick the default model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := modelManager(cmd)
		if err != nil {
			return err
		}
		name, err := mgr.SelectInteractive(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to select model: %w", err)
		}
		return mgr.SetDefault(name)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "StreamVox CLI v%s\n", Version)
		fmt.Fprintf(out, "  Commit:  %s\n", GitCommit)
		fmt.Fprintf(out, "  Branch:  %s\n", GitBranch)
		fmt.Fprintf(out, "  Built:   %s\n", BuildTime)
	},
}

func modelManager(cmd *cobra.Command) (*app.ModelManager, error) {
	store, err := models.NewStore(cfg.Model.Dir)
	if err != nil {
		return nil, err
	}
	return app.NewModelManager(store, cmd.OutOrStdout()), nil
}

// applyFlags copies explicitly set flags over the loaded config
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
	if flags.Changed("partials") {
		cfg.Output.Partials, _ = flags.GetBool("partials")
	}
	if flags.Changed("method") {
		cfg.Decoder.Method, _ = flags.GetString("method")
	}
	if flags.Changed("beam-size") {
		cfg.Decoder.BeamSize, _ = flags.GetInt("beam-size")
	}
	if flags.Changed("device") {
		cfg.Audio.Device, _ = flags.GetString("device")
	}
	if flags.Changed("ptt") {
		cfg.Audio.PTTHotkey, _ = flags.GetString("ptt")
	}
	return cfg.Validate()
}

// setup opens the recogniser and the formatter. The returned closer
// releases the output file.
func setup(cmd *cobra.Command) (*app.Recognizer, output.Formatter, func(), error) {
	if err := applyFlags(cmd); err != nil {
		return nil, nil, nil, err
	}

	store, err := models.NewStore(cfg.Model.Dir)
	if err != nil {
		return nil, nil, nil, err
	}
	name, _ := cmd.Flags().GetString("model")
	rec, err := app.OpenRecognizer(cfg, store, name, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	var w io.Writer = cmd.OutOrStdout()
	closer := func() {}
	if cfg.Output.File != "" {
		f, err := os.Create(cfg.Output.File)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
		closer = func() { f.Close() }
	}

	formatter, err := output.NewFormatter(cfg.Output.Format, w, output.Options{
		Lowercase: cfg.Output.Lowercase,
		Partials:  cfg.Output.Partials,
	})
	if err != nil {
		closer()
		return nil, nil, nil, err
	}
	return rec, formatter, closer, nil
}

func runListen(cmd *cobra.Command, args []string) error {
	rec, formatter, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer()

	capture := audio.DefaultCaptureConfig()
	capture.SampleRate = uint32(cfg.Audio.SampleRate)
	if cfg.Audio.Device != "" {
		device, err := app.NewDeviceManager(cmd.ErrOrStderr()).SelectDevice(cfg.Audio.Device)
		if err != nil {
			return err
		}
		capture.DeviceID = device.ID
		logger.Info("using audio device", "device", device.Name)
	}
	capturer, err := audio.NewCapturer(capture)
	if err != nil {
		return fmt.Errorf("failed to create audio capturer: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, _ := cmd.Flags().GetString("ptt-mode")
	recorder := telemetry.NewRecorder(logger)
	listener := app.NewListener(rec, capturer, formatter, recorder, logger, app.ListenConfig{
		PollInterval: cfg.Audio.PollInterval,
		PTTHotkey:    cfg.Audio.PTTHotkey,
		PTTMode:      mode,
	})

	fmt.Fprintln(cmd.ErrOrStderr(), "Listening... press Ctrl+C to stop.")
	summary, err := listener.Run(ctx)
	fmt.Fprintln(cmd.ErrOrStderr())
	output.WriteSummaries(cmd.ErrOrStderr(), []telemetry.Summary{summary})
	return err
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	rec, formatter, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := telemetry.NewRecorder(logger)
	ft := app.NewFileTranscriber(rec, formatter, recorder)

	var summaries []telemetry.Summary
	for _, path := range args {
		summary, err := ft.TranscribeFile(ctx, path)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}
	output.WriteSummaries(cmd.ErrOrStderr(), summaries)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
