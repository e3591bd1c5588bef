package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dudu/emoface/internal/imaging"
)

// DefaultConfThreshold is the score a face must exceed to be kept
const DefaultConfThreshold float32 = 0.9

// DefaultMinFaceSize is the smallest box side, in pixels, that counts as a face
const DefaultMinFaceSize float32 = 40

// ErrInvalidBox is returned when a box cannot be cropped from its image
var ErrInvalidBox = errors.New("invalid face box")

// FilterByScore keeps faces whose score is strictly greater than threshold.
// Input order is preserved.
func FilterByScore(faces []Face, threshold float32) []Face {
	kept := make([]Face, 0, len(faces))
	for _, f := range faces {
		if f.Score > threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

// filterBySize drops boxes narrower or shorter than minSize
func filterBySize(faces []Face, minSize float32) []Face {
	if minSize <= 0 {
		return faces
	}
	kept := faces[:0]
	for _, f := range faces {
		if f.BoundingBox.Width() >= minSize && f.BoundingBox.Height() >= minSize {
			kept = append(kept, f)
		}
	}
	return kept
}

// CropFaces cuts one contiguous sub-image per face out of img, in order.
// On error every crop made so far is closed.
func CropFaces(img gocv.Mat, faces []Face) ([]gocv.Mat, error) {
	crops := make([]gocv.Mat, 0, len(faces))
	for i, f := range faces {
		crop, err := imaging.Crop(img, f.BoundingBox.Rect())
		if err != nil {
			CloseAll(crops)
			return nil, fmt.Errorf("%w: face %d: %v", ErrInvalidBox, i, err)
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

// CloseAll releases every Mat in mats
func CloseAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
