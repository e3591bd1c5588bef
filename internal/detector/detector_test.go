package detector

import (
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func box(x1, y1, x2, y2 float32) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestFilterByScoreIsStrict(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 50, 50), Score: 0.89},
		{BoundingBox: box(10, 0, 60, 50), Score: 0.90},
		{BoundingBox: box(20, 0, 70, 50), Score: 0.91},
	}

	kept := FilterByScore(faces, DefaultConfThreshold)
	if len(kept) != 1 {
		t.Fatalf("kept %d faces, want 1", len(kept))
	}
	if kept[0].Score != 0.91 {
		t.Errorf("kept score %v, want 0.91", kept[0].Score)
	}
}

func TestFilterByScorePreservesOrder(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 50, 50), Score: 0.95},
		{BoundingBox: box(100, 0, 150, 50), Score: 0.5},
		{BoundingBox: box(200, 0, 250, 50), Score: 0.99},
		{BoundingBox: box(300, 0, 350, 50), Score: 0.92},
	}

	kept := FilterByScore(faces, 0.9)
	want := []float32{0.95, 0.99, 0.92}
	if len(kept) != len(want) {
		t.Fatalf("kept %d faces, want %d", len(kept), len(want))
	}
	for i, w := range want {
		if kept[i].Score != w {
			t.Errorf("kept[%d].Score = %v, want %v", i, kept[i].Score, w)
		}
	}
}

func TestFilterByScoreEmpty(t *testing.T) {
	kept := FilterByScore(nil, 0.9)
	if kept == nil || len(kept) != 0 {
		t.Errorf("FilterByScore(nil) = %v, want empty non-nil slice", kept)
	}
}

func TestFilterBySize(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 39, 80), Score: 1},
		{BoundingBox: box(0, 0, 40, 40), Score: 1},
		{BoundingBox: box(0, 0, 100, 30), Score: 1},
	}
	kept := filterBySize(faces, DefaultMinFaceSize)
	if len(kept) != 1 || kept[0].BoundingBox != box(0, 0, 40, 40) {
		t.Errorf("filterBySize kept %+v", kept)
	}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want float32
	}{
		{"identical", box(0, 0, 10, 10), box(0, 0, 10, 10), 1},
		{"disjoint", box(0, 0, 10, 10), box(20, 20, 30, 30), 0},
		{"touching", box(0, 0, 10, 10), box(10, 0, 20, 10), 0},
		{"half", box(0, 0, 10, 10), box(5, 0, 15, 10), 50.0 / 150.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("iou = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMSCollapsesOverlaps(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 100, 100), Score: 0.8},
		{BoundingBox: box(5, 5, 105, 105), Score: 0.95},
		{BoundingBox: box(300, 300, 400, 400), Score: 0.92},
		{BoundingBox: box(2, 2, 98, 98), Score: 0.7},
	}

	kept := nms(faces, 0.4)
	if len(kept) != 2 {
		t.Fatalf("nms kept %d faces, want 2", len(kept))
	}
	if kept[0].Score != 0.95 || kept[1].Score != 0.92 {
		t.Errorf("nms kept scores %v, %v; want 0.95, 0.92", kept[0].Score, kept[1].Score)
	}
}

func TestNMSLeavesInputOrder(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 10, 10), Score: 0.6},
		{BoundingBox: box(50, 50, 60, 60), Score: 0.9},
		{BoundingBox: box(100, 100, 110, 110), Score: 0.9},
	}
	before := append([]Face(nil), faces...)

	kept := nms(faces, 0.4)

	for i := range faces {
		if faces[i] != before[i] {
			t.Fatalf("nms reordered its input: %+v", faces)
		}
	}
	want := []float32{0.9, 0.9, 0.6}
	if len(kept) != len(want) {
		t.Fatalf("nms kept %d faces, want %d", len(kept), len(want))
	}
	if kept[0].BoundingBox != box(50, 50, 60, 60) || kept[1].BoundingBox != box(100, 100, 110, 110) {
		t.Errorf("equal scores not kept in input order: %+v", kept)
	}
	for i, w := range want {
		if kept[i].Score != w {
			t.Errorf("kept[%d].Score = %v, want %v", i, kept[i].Score, w)
		}
	}
}

func TestPreprocessLetterbox(t *testing.T) {
	const size = 64
	s := &SCRFD{config: Config{DetectionSize: size}}

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 10, 30, 0), 64, 128, gocv.MatTypeCV8UC3)
	defer img.Close()

	data, scale := s.preprocess(img)
	if scale != 0.5 {
		t.Errorf("scale = %v, want 0.5", scale)
	}
	if len(data) != 3*size*size {
		t.Fatalf("len(data) = %d, want %d", len(data), 3*size*size)
	}

	plane := size * size
	tests := []struct {
		name string
		idx  int
		want float32
	}{
		{"channel 0 top-left", 0, (200 - 127.5) / 128},
		{"channel 1 top-left", plane, (10 - 127.5) / 128},
		{"channel 2 top-left", 2 * plane, (30 - 127.5) / 128},
		{"last image row", 31 * size, (200 - 127.5) / 128},
		{"padding below image", 40 * size, -127.5 / 128},
		{"padding in channel 2", 2*plane + 63*size + 63, -127.5 / 128},
	}
	for _, tt := range tests {
		if got := data[tt.idx]; math.Abs(float64(got-tt.want)) > 1e-3 {
			t.Errorf("%s: data[%d] = %v, want %v", tt.name, tt.idx, got, tt.want)
		}
	}
}

// scrfdOutputs allocates zeroed SCRFD outputs for a square input, with the
// optional keypoint tensors appended after scores and boxes
func scrfdOutputs(inputSize int, strides []int, withKeypoints bool) [][]float32 {
	levels := len(strides)
	n := 2 * levels
	if withKeypoints {
		n = 3 * levels
	}
	outputs := make([][]float32, n)
	for i, s := range strides {
		anchors := (inputSize / s) * (inputSize / s) * 2
		outputs[i] = make([]float32, anchors)
		outputs[i+levels] = make([]float32, anchors*4)
		if withKeypoints {
			outputs[i+2*levels] = make([]float32, anchors*10)
		}
	}
	return outputs
}

func TestDecodeIgnoresKeypoints(t *testing.T) {
	const inputSize = 64
	strides := []int{8, 16, 32}
	params := decodeParams{
		inputSize: inputSize, scale: 1, strides: strides, numAnchors: 2,
		threshold: 0.5, origWidth: 64, origHeight: 64,
	}

	plain := scrfdOutputs(inputSize, strides, false)
	withKps := scrfdOutputs(inputSize, strides, true)
	for _, outputs := range [][][]float32{plain, withKps} {
		outputs[0][5] = 0.8
		copy(outputs[3][5*4:], []float32{1, 1, 1, 1})
	}
	for i := range withKps[6] {
		withKps[6][i] = 3
	}

	want := decode(plain, params)
	got := decode(withKps, params)
	if len(want) != 1 || len(got) != len(want) || got[0] != want[0] {
		t.Errorf("decode with keypoints = %+v, without = %+v", got, want)
	}
}

func TestDecode(t *testing.T) {
	const inputSize = 64
	strides := []int{8, 16, 32}
	outputs := make([][]float32, 6)
	for i, s := range strides {
		n := (inputSize / s) * (inputSize / s) * 2
		outputs[i] = make([]float32, n)
		outputs[i+3] = make([]float32, n*4)
	}

	// stride 8, y=2 x=3 anchor 0
	idx := (2*8+3)*2 + 0
	outputs[0][idx] = 0.97
	copy(outputs[3][idx*4:], []float32{1, 1, 2, 2})

	// stride 16, y=0 x=0 anchor 1, extends past the image
	outputs[1][1] = 0.7
	copy(outputs[4][4:], []float32{1, 1, 20, 20})

	// below the candidate floor
	outputs[2][0] = 0.3

	faces := decode(outputs, decodeParams{
		inputSize:  inputSize,
		scale:      0.5,
		strides:    strides,
		numAnchors: 2,
		threshold:  0.5,
		origWidth:  200,
		origHeight: 100,
	})

	if len(faces) != 2 {
		t.Fatalf("decoded %d faces, want 2", len(faces))
	}
	if faces[0].BoundingBox != box(32, 16, 80, 64) || faces[0].Score != 0.97 {
		t.Errorf("faces[0] = %+v", faces[0])
	}
	if faces[1].BoundingBox != box(0, 0, 200, 100) {
		t.Errorf("faces[1] box = %+v, want clamped to image", faces[1].BoundingBox)
	}
}

func TestDecodeShortOutputs(t *testing.T) {
	outputs := [][]float32{{0.9}, {}, {}, {1, 1, 1, 1}, {}, {}}
	faces := decode(outputs, decodeParams{
		inputSize: 64, scale: 1, strides: []int{8, 16, 32}, numAnchors: 2,
		threshold: 0.5, origWidth: 64, origHeight: 64,
	})
	if len(faces) != 1 {
		t.Errorf("decoded %d faces, want 1", len(faces))
	}
}

func TestBoundingBoxRectTruncates(t *testing.T) {
	b := box(10.9, 20.2, 60.7, 80.99)
	if r := b.Rect(); r != image.Rect(10, 20, 60, 80) {
		t.Errorf("Rect() = %v", r)
	}
}

func TestCropFacesMatchesBoxes(t *testing.T) {
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()

	faces := []Face{
		{BoundingBox: box(10.5, 12.7, 60.2, 70.9), Score: 0.95},
		{BoundingBox: box(100, 20, 160, 120), Score: 0.93},
	}
	crops, err := CropFaces(img, faces)
	if err != nil {
		t.Fatalf("CropFaces: %v", err)
	}
	defer CloseAll(crops)

	if len(crops) != len(faces) {
		t.Fatalf("got %d crops, want %d", len(crops), len(faces))
	}
	for i, f := range faces {
		r := f.BoundingBox.Rect()
		if crops[i].Cols() != r.Dx() || crops[i].Rows() != r.Dy() {
			t.Errorf("crop %d = %dx%d, want %dx%d", i, crops[i].Cols(), crops[i].Rows(), r.Dx(), r.Dy())
		}
	}
}

func TestCropFacesRejectsOutOfBounds(t *testing.T) {
	img := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer img.Close()

	faces := []Face{
		{BoundingBox: box(0, 0, 40, 40), Score: 0.95},
		{BoundingBox: box(30, 30, 90, 90), Score: 0.95},
	}
	crops, err := CropFaces(img, faces)
	if !errors.Is(err, ErrInvalidBox) {
		t.Fatalf("error = %v, want ErrInvalidBox", err)
	}
	if crops != nil {
		t.Errorf("crops = %v, want nil on error", crops)
	}
}
