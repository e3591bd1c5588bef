package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dudu/emoface/internal/detector"
	"github.com/dudu/emoface/internal/emotion"
	"github.com/dudu/emoface/internal/inference"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds process configuration, read from the environment
type Config struct {
	AppEnv string `validate:"required,oneof=development production test"`
	Port   int    `validate:"min=1,max=65535"`

	UploadDir      string `validate:"required"`
	ModelsDir      string `validate:"required"`
	DetectorModel  string `validate:"required"`
	EmotionModel   string
	DeviceName     string
	ORTLibraryPath string

	ConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	CandidateThreshold  float64 `validate:"gte=0,lte=1"`
	NMSThreshold        float64 `validate:"gt=0,lte=1"`
	MinFaceSize         float64 `validate:"gte=0"`
	DetectionSize       int     `validate:"min=32"`

	BodyLimitMB int     `validate:"min=1"`
	RateLimit   float64 `validate:"gt=0"`
	RateBurst   int     `validate:"min=1"`

	LogLevel string `validate:"oneof=trace debug info warn error"`
	LogDir   string

	// resolved by Validate
	Device      inference.Device `validate:"-"`
	EmotionSpec emotion.ModelSpec `validate:"-"`
}

// Default returns the built-in configuration. Detector settings come from
// detector.DefaultConfig.
func Default() Config {
	det := detector.DefaultConfig("scrfd_10g_bnkps.onnx")
	return Config{
		AppEnv:              "development",
		Port:                8000,
		UploadDir:           "uploads",
		ModelsDir:           "models",
		DetectorModel:       det.ModelPath,
		EmotionModel:        emotion.DefaultModel,
		DeviceName:          det.Device.String(),
		ConfidenceThreshold: widen(det.ConfThreshold),
		CandidateThreshold:  widen(det.CandidateThreshold),
		NMSThreshold:        widen(det.NMSThreshold),
		MinFaceSize:         widen(det.MinFaceSize),
		DetectionSize:       det.DetectionSize,
		BodyLimitMB:         20,
		RateLimit:           5,
		RateBurst:           10,
		LogLevel:            "info",
		LogDir:              filepath.Join("storage", "logs"),
	}
}

// Load reads the configuration and validates it
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read loads an optional .env file and overlays the environment on the
// defaults. Callers apply their own overrides and then call Validate.
// A numeric variable that does not parse is an error.
func Read() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	env := &envReader{}
	env.String("APP_ENV", &cfg.AppEnv)
	env.Int("PORT", &cfg.Port)
	env.String("UPLOAD_DIR", &cfg.UploadDir)
	env.String("MODELS_DIR", &cfg.ModelsDir)
	env.String("DETECTOR_MODEL", &cfg.DetectorModel)
	env.String("EMOTION_MODEL", &cfg.EmotionModel)
	env.String("DEVICE", &cfg.DeviceName)
	env.String("ORT_LIBRARY_PATH", &cfg.ORTLibraryPath)
	env.Float("CONFIDENCE_THRESHOLD", &cfg.ConfidenceThreshold)
	env.Float("CANDIDATE_THRESHOLD", &cfg.CandidateThreshold)
	env.Float("NMS_THRESHOLD", &cfg.NMSThreshold)
	env.Float("MIN_FACE_SIZE", &cfg.MinFaceSize)
	env.Int("DETECTION_SIZE", &cfg.DetectionSize)
	env.Int("BODY_LIMIT_MB", &cfg.BodyLimitMB)
	env.Float("RATE_LIMIT", &cfg.RateLimit)
	env.Int("RATE_BURST", &cfg.RateBurst)
	env.String("LOG_LEVEL", &cfg.LogLevel)
	env.String("LOG_DIR", &cfg.LogDir)

	if err := env.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks field ranges and resolves the device and emotion model
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.DetectionSize%32 != 0 {
		return fmt.Errorf("%w: DETECTION_SIZE %d is not a multiple of 32", ErrInvalidConfig, c.DetectionSize)
	}

	device, err := inference.ParseDevice(c.DeviceName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Device = device

	spec, err := emotion.Lookup(c.EmotionModel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.EmotionSpec = spec
	return nil
}

// DetectorPath returns the detector model file, relative to ModelsDir
// unless DetectorModel is absolute
func (c Config) DetectorPath() string {
	if filepath.IsAbs(c.DetectorModel) {
		return c.DetectorModel
	}
	return filepath.Join(c.ModelsDir, c.DetectorModel)
}

// DetectorConfig maps the configuration onto SCRFD settings
func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		ModelPath:          c.DetectorPath(),
		Device:             c.Device,
		DetectionSize:      c.DetectionSize,
		CandidateThreshold: float32(c.CandidateThreshold),
		NMSThreshold:       float32(c.NMSThreshold),
		ConfThreshold:      float32(c.ConfidenceThreshold),
		MinFaceSize:        float32(c.MinFaceSize),
	}
}

// FileLogDir is where logs are written; tests log to stderr only
func (c Config) FileLogDir() string {
	if c.AppEnv == "test" {
		return ""
	}
	return c.LogDir
}

// envReader overlays environment variables and collects parse failures
type envReader struct {
	errs []error
}

func (r *envReader) String(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func (r *envReader) Float(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not a number", name, v))
		return
	}
	*value = f
}

func (r *envReader) Int(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q is not an integer", name, v))
		return
	}
	*value = i
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}

// widen converts a float32 default to the float64 with the same decimal form
func widen(f float32) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	return v
}
