package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/emoface/internal/detector"
	"github.com/dudu/emoface/internal/emotion"
)

// FaceDetector interface for face detection
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
	Close() error
}

// EmotionClassifier interface for per-face emotion recognition
type EmotionClassifier interface {
	Predict(face gocv.Mat) (emotion.Prediction, error)
	Close() error
}
