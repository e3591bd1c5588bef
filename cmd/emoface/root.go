package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dudu/emoface/internal/config"
	applog "github.com/dudu/emoface/internal/log"
	"github.com/dudu/emoface/internal/pipeline"
)

// Version is the application version.
const Version = "0.1.0"

// Flags that override the environment when set
type Options struct {
	ModelsDir    string
	EmotionModel string
	Device       string
	LogLevel     string
}

var (
	rootOpts Options
	cfg      config.Config
	logger   *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:     "emoface",
	Short:   "Face detection and emotion recognition",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cfg = loaded
		logger = applog.NewLogger(applog.Options{
			Level: cfg.LogLevel,
			Dir:   cfg.FileLogDir(),
		})
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.ModelsDir, "models-dir", "", "Directory holding the ONNX models (env MODELS_DIR)")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.EmotionModel, "emotion-model", "m", "", "Emotion model name, see 'emoface models' (env EMOTION_MODEL)")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.Device, "device", "d", "", "Inference device: cpu, cuda, cuda:N or coreml (env DEVICE)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.LogLevel, "log-level", "", "Log level (env LOG_LEVEL)")
}

// loadConfig reads the environment, applies the flags set on cmd and
// validates the result once.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	loaded, err := config.Read()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("models-dir") {
		loaded.ModelsDir = rootOpts.ModelsDir
	}
	if flags.Changed("emotion-model") {
		loaded.EmotionModel = rootOpts.EmotionModel
	}
	if flags.Changed("device") {
		loaded.DeviceName = rootOpts.Device
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = rootOpts.LogLevel
	}
	if flags.Changed("port") {
		loaded.Port = servePort
	}

	if err := loaded.Validate(); err != nil {
		return config.Config{}, err
	}
	return loaded, nil
}

// newPipeline loads both models as configured
func newPipeline() (*pipeline.Pipeline, error) {
	p, err := pipeline.New(pipeline.Config{
		ORTLibraryPath: cfg.ORTLibraryPath,
		Detector:       cfg.DetectorConfig(),
		Emotion:        cfg.EmotionSpec,
		ModelsDir:      cfg.ModelsDir,
		Device:         cfg.Device,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, nil
}
