package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/emoface/internal/inference"
)

// Config holds SCRFD detector settings
type Config struct {
	ModelPath          string
	Device             inference.Device
	DetectionSize      int
	CandidateThreshold float32 // anchor score floor before NMS
	NMSThreshold       float32
	ConfThreshold      float32 // retention threshold, strict
	MinFaceSize        float32
}

// DefaultConfig returns the settings used by the service
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:          modelPath,
		Device:             inference.CPU,
		DetectionSize:      640,
		CandidateThreshold: 0.5,
		NMSThreshold:       0.4,
		ConfThreshold:      DefaultConfThreshold,
		MinFaceSize:        DefaultMinFaceSize,
	}
}

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	config         Config
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector. Output names are taken from the
// model in declaration order: scores, then boxes, then optional keypoints.
func NewSCRFD(config Config) (*SCRFD, error) {
	session, err := inference.NewSession(config.ModelPath, config.Device, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	strides := []int{8, 16, 32}
	if n := len(session.OutputNames()); n != 2*len(strides) && n != 3*len(strides) {
		session.Destroy()
		return nil, fmt.Errorf("unexpected SCRFD output count %d", n)
	}

	return &SCRFD{
		session:        session,
		config:         config,
		featureStrides: strides,
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces in an RGB image and returns those scoring above
// ConfThreshold, one box per face, in detector order.
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	candidates, err := s.Candidates(img)
	if err != nil {
		return nil, err
	}
	return FilterByScore(candidates, s.config.ConfThreshold), nil
}

// Candidates runs the model and returns every face left after size
// filtering and NMS, before the retention threshold.
func (s *SCRFD) Candidates(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	origHeight := img.Rows()
	origWidth := img.Cols()
	size := s.config.DetectionSize

	inputData, scale := s.preprocess(img)

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(size), int64(size)}, inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs, err := s.session.RunFloat32(inputTensor)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	faces := decode(outputs, decodeParams{
		inputSize:  size,
		scale:      scale,
		strides:    s.featureStrides,
		numAnchors: s.numAnchors,
		threshold:  s.config.CandidateThreshold,
		origWidth:  origWidth,
		origHeight: origHeight,
	})
	faces = filterBySize(faces, s.config.MinFaceSize)

	return nms(faces, s.config.NMSThreshold), nil
}

// preprocess letterboxes the RGB image into the top-left corner of a
// square input and normalizes it to (x - 127.5) / 128 in NCHW order.
func (s *SCRFD) preprocess(img gocv.Mat) ([]float32, float32) {
	size := s.config.DetectionSize
	height := img.Rows()
	width := img.Cols()

	scale := float32(size) / float32(max(height, width))

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size, size, gocv.MatTypeCV8UC3)
	defer padded.Close()

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// input is already RGB, so no channel swap here
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(size, size),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	return inference.BytesToFloat32(blob.ToBytes()), scale
}

type decodeParams struct {
	inputSize  int
	scale      float32
	strides    []int
	numAnchors int
	threshold  float32
	origWidth  int
	origHeight int
}

// decode turns raw SCRFD outputs into faces in original image coordinates.
// outputs[i] holds scores for stride i and outputs[i+len(strides)] the
// distances from the anchor center to the four box edges, in stride units.
func decode(outputs [][]float32, p decodeParams) []Face {
	var faces []Face
	levels := len(p.strides)

strideLoop:
	for level, stride := range p.strides {
		fmHeight := p.inputSize / stride
		fmWidth := p.inputSize / stride

		scoreData := outputs[level]
		bboxData := outputs[level+levels]

		anchorIdx := 0
		for y := 0; y < fmHeight; y++ {
			for x := 0; x < fmWidth; x++ {
				for a := 0; a < p.numAnchors; a++ {
					if anchorIdx >= len(scoreData) || anchorIdx*4+3 >= len(bboxData) {
						continue strideLoop
					}
					score := scoreData[anchorIdx]

					if score > p.threshold {
						cx := float32(x * stride)
						cy := float32(y * stride)

						bboxIdx := anchorIdx * 4
						box := BoundingBox{
							X1: (cx - bboxData[bboxIdx]*float32(stride)) / p.scale,
							Y1: (cy - bboxData[bboxIdx+1]*float32(stride)) / p.scale,
							X2: (cx + bboxData[bboxIdx+2]*float32(stride)) / p.scale,
							Y2: (cy + bboxData[bboxIdx+3]*float32(stride)) / p.scale,
						}

						faces = append(faces, Face{
							BoundingBox: box.Clamp(p.origWidth, p.origHeight),
							Score:       score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}
