package pipeline

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudu/emoface/internal/detector"
	"github.com/dudu/emoface/internal/emotion"
	"github.com/dudu/emoface/internal/imaging"
	"github.com/dudu/emoface/internal/inference"
)

// ErrImageLoad is returned when the input file is missing or not an image
var ErrImageLoad = errors.New("failed to load image")

// Config holds pipeline configuration
type Config struct {
	ORTLibraryPath string
	Detector       detector.Config
	Emotion        emotion.ModelSpec
	ModelsDir      string
	Device         inference.Device
}

// Result pairs one detected face with its emotion
type Result struct {
	Face       image.Image
	Box        detector.BoundingBox
	Score      float32
	Emotion    string
	Confidence float32
}

// Timing holds performance timing information
type Timing struct {
	Detection      time.Duration
	Cropping       time.Duration
	Classification time.Duration
	Total          time.Duration
}

// Report is the output of Analyze
type Report struct {
	Results []Result
	Timing  Timing
}

// Pipeline orchestrates face detection and emotion recognition
type Pipeline struct {
	detector   FaceDetector
	classifier EmotionClassifier
	log        *logrus.Logger
	ownRuntime bool
}

// New initializes ONNX Runtime and loads both models once. The returned
// pipeline may be shared between goroutines.
func New(config Config, logger *logrus.Logger) (*Pipeline, error) {
	if err := inference.Initialize(config.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	detConfig := config.Detector
	detConfig.Device = config.Device
	det, err := detector.NewSCRFD(detConfig)
	if err != nil {
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	cls, err := emotion.NewClassifier(config.Emotion, config.ModelsDir, config.Device)
	if err != nil {
		det.Close()
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	spec := cls.Spec()
	logger.WithFields(logrus.Fields{
		"detector": detConfig.ModelPath,
		"emotion":  spec.Name,
		"input":    spec.InputSize,
		"labels":   len(spec.Labels),
		"device":   config.Device.String(),
	}).Info("Models loaded")

	p := NewWithModels(det, cls, logger)
	p.ownRuntime = true
	return p, nil
}

// NewWithModels builds a pipeline around already constructed models
func NewWithModels(det FaceDetector, cls EmotionClassifier, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		detector:   det,
		classifier: cls,
		log:        logger,
	}
}

// ProcessImage detects every face in the image at imagePath and returns one
// result per face, in detector order. Any failure discards all results.
func (p *Pipeline) ProcessImage(imagePath string) ([]Result, error) {
	report, err := p.Analyze(imagePath)
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}

// Analyze is ProcessImage with per-stage timing
func (p *Pipeline) Analyze(imagePath string) (*Report, error) {
	totalStart := time.Now()
	var timing Timing

	img, err := imaging.LoadRGB(imagePath)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	defer img.Close()

	detectStart := time.Now()
	faces, err := p.detector.Detect(img)
	timing.Detection = time.Since(detectStart)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	p.log.Infof("Detected %d faces", len(faces))

	cropStart := time.Now()
	crops, err := detector.CropFaces(img, faces)
	timing.Cropping = time.Since(cropStart)
	if err != nil {
		return nil, fmt.Errorf("cropping failed: %w", err)
	}
	defer detector.CloseAll(crops)

	p.log.Infof("Starting emotion recognition for %d faces", len(crops))
	classifyStart := time.Now()
	results := make([]Result, 0, len(crops))
	for i, crop := range crops {
		prediction, err := p.classifier.Predict(crop)
		if err != nil {
			return nil, fmt.Errorf("emotion recognition failed for face %d: %w", i, err)
		}
		p.log.Debugf("Predicted emotion: %s", prediction.Label)

		face, err := imaging.ToImage(crop)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}

		results = append(results, Result{
			Face:       face,
			Box:        faces[i].BoundingBox,
			Score:      faces[i].Score,
			Emotion:    prediction.Label,
			Confidence: prediction.Confidence(),
		})
	}
	timing.Classification = time.Since(classifyStart)
	timing.Total = time.Since(totalStart)

	p.log.WithFields(logrus.Fields{
		"faces":          len(results),
		"detection":      timing.Detection,
		"classification": timing.Classification,
		"total":          timing.Total,
	}).Debug("Image analyzed")

	return &Report{Results: results, Timing: timing}, nil
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.classifier != nil {
		if err := p.classifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.ownRuntime {
		if err := inference.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
