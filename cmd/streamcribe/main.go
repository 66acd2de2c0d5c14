package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowlat/streamcribe"
	"github.com/lowlat/streamcribe/pkg/config"
	"github.com/lowlat/streamcribe/pkg/logging"
)

var (
	cfg          config.Config
	modelBackend string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamcribe",
		Short: "Streaming speech-to-text pipeline",
	}

	rootCmd.PersistentFlags().StringVar(&modelBackend, "model-backend", string(config.ModelBackendDefault), "whisper.cpp, azure, or mock")
	rootCmd.PersistentFlags().StringVar(&cfg.ModelFile, "model-file", "", "whisper.cpp model path")
	rootCmd.PersistentFlags().StringVar(&cfg.Language, "language", config.LanguageDefault, "recognition language")
	rootCmd.PersistentFlags().IntVar(&cfg.NumThreads, "num-threads", 0, "model inference threads")
	rootCmd.PersistentFlags().StringVar(&cfg.AzureSpeechKey, "azure-speech-key", "", "Azure Speech subscription key")
	rootCmd.PersistentFlags().StringVar(&cfg.AzureSpeechRegion, "azure-speech-region", "", "Azure Speech region")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", ".", "working directory for logs and model data")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", "", "rotating log file path, empty disables file logging")

	rootCmd.AddCommand(runMicCmd(), runFileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-mic",
		Short: "Transcribe live audio from the default microphone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.CaptureSource = config.CaptureSourceMic
			return run(cmd.Context())
		},
	}
}

func runFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-file [wav path]",
		Short: "Transcribe a 16-bit PCM mono WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.CaptureSource = config.CaptureSourceWAV
			cfg.WAVPath = args[0]
			return run(cmd.Context())
		},
	}
	return cmd
}

func run(ctx context.Context) error {
	cfg.ModelBackend = config.ModelBackend(modelBackend)
	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, FilePath: cfg.LogFile})

	sm, err := streamcribe.NewSpeechModel(cfg)
	if err != nil {
		return fmt.Errorf("failed to construct speech model: %w", err)
	}
	defer sm.Close()

	src, err := streamcribe.NewCaptureSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to construct capture source: %w", err)
	}

	var metrics *streamcribe.Metrics
	driver := streamcribe.NewDriver(cfg, metrics)
	driver.Logger = logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, err := driver.Start(ctx, src, sm)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case u, ok := <-h.Outputs().Confirmed():
				if !ok {
					return
				}
				fmt.Println(u.Text)
			case <-h.Done():
				return
			}
		}
	}()

	select {
	case <-sigCh:
		logger.Info("received interrupt, stopping pipeline")
	case <-h.Done():
		logger.Info("pipeline stopped on its own", "error", h.Err())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	return h.Stop(stopCtx)
}
