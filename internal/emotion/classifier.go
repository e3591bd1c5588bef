package emotion

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/emoface/internal/inference"
)

// ImageNet statistics the EfficientNet models were trained with
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Prediction is the classifier output for one face
type Prediction struct {
	Label string
	// Scores are the raw class logits, in Labels order
	Scores []float32
	// Probabilities are softmax(Scores)
	Probabilities []float32
}

// Confidence returns the probability of the predicted label
func (p Prediction) Confidence() float32 {
	var best float32
	for _, v := range p.Probabilities {
		best = max(best, v)
	}
	return best
}

// Classifier assigns an emotion label to a face crop
type Classifier struct {
	session *inference.Session
	spec    ModelSpec
}

// NewClassifier loads spec's model file from modelsDir onto device
func NewClassifier(spec ModelSpec, modelsDir string, device inference.Device) (*Classifier, error) {
	session, err := inference.NewSession(spec.Path(modelsDir), device, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session: %w", spec.Name, err)
	}

	return &Classifier{
		session: session,
		spec:    spec,
	}, nil
}

// Spec returns the model the classifier runs
func (c *Classifier) Spec() ModelSpec {
	return c.spec
}

// Predict classifies one RGB face crop
func (c *Classifier) Predict(face gocv.Mat) (Prediction, error) {
	if face.Empty() {
		return Prediction{}, fmt.Errorf("empty face image")
	}

	size := c.spec.InputSize
	inputTensor, err := inference.CreateTensor(
		[]int64{1, 3, int64(size), int64(size)},
		c.preprocess(face),
	)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs, err := c.session.RunFloat32(inputTensor)
	if err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	return decodeScores(outputs[0], c.spec)
}

// preprocess resizes to the model input, scales to [0, 1] and normalizes
// each RGB channel with the ImageNet mean and std, in NCHW order.
func (c *Classifier) preprocess(face gocv.Mat) []float32 {
	size := c.spec.InputSize

	blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(size, size),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	data := inference.BytesToFloat32(blob.ToBytes())
	normalize(data, size*size)
	return data
}

// normalize applies (x - mean) / std per channel to planar data
func normalize(data []float32, plane int) {
	for ch := 0; ch < 3; ch++ {
		m, s := channelMean[ch], channelStd[ch]
		for i := ch * plane; i < (ch+1)*plane && i < len(data); i++ {
			data[i] = (data[i] - m) / s
		}
	}
}

// decodeScores picks the label with the highest logit. Multi-task models
// carry two extra regression outputs that are not class scores.
func decodeScores(raw []float32, spec ModelSpec) (Prediction, error) {
	n := len(spec.Labels)
	want := n
	if spec.MultiTask {
		want += 2
	}
	if len(raw) < want {
		return Prediction{}, fmt.Errorf("model %s returned %d scores, want %d", spec.Name, len(raw), want)
	}

	scores := make([]float32, n)
	copy(scores, raw[:n])

	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}

	return Prediction{
		Label:         spec.Labels[best],
		Scores:        scores,
		Probabilities: softmax(scores),
	}, nil
}

func softmax(x []float32) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}

	peak := x[0]
	for _, v := range x[1:] {
		peak = max(peak, v)
	}

	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - peak))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// Close releases classifier resources
func (c *Classifier) Close() error {
	return c.session.Destroy()
}
