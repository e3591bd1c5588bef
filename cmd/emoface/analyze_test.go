package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/dudu/emoface/internal/detector"
	"github.com/dudu/emoface/internal/pipeline"
)

func sampleResults() []pipeline.Result {
	return []pipeline.Result{
		{
			Face:       image.NewRGBA(image.Rect(0, 0, 20, 30)),
			Box:        detector.BoundingBox{X1: 10.7, Y1: 5.2, X2: 30.9, Y2: 35.5},
			Emotion:    "Happiness",
			Confidence: 0.8765,
		},
		{
			Face:       image.NewRGBA(image.Rect(0, 0, 10, 10)),
			Box:        detector.BoundingBox{X1: 50, Y1: 50, X2: 60, Y2: 60},
			Emotion:    "Neutral",
			Confidence: 0.5,
		},
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, sampleResults())

	want := "0\tHappiness\t0.877\t10,5,30,35\n1\tNeutral\t0.500\t50,50,60,60\n"
	if buf.String() != want {
		t.Errorf("printResults() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteCrops(t *testing.T) {
	dir := t.TempDir()
	analyzeOpts.Quality = 90

	if err := writeCrops(dir, 0, "/photos/party.png", sampleResults()); err != nil {
		t.Fatalf("writeCrops: %v", err)
	}

	for _, name := range []string{"000_party_face0_happiness.jpg", "000_party_face1_neutral.jpg"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
			t.Errorf("%s is not a JPEG", name)
		}
	}
}

func TestWriteCropsSameBaseName(t *testing.T) {
	dir := t.TempDir()
	analyzeOpts.Quality = 90

	if err := writeCrops(dir, 0, "a/img.jpg", sampleResults()); err != nil {
		t.Fatal(err)
	}
	if err := writeCrops(dir, 1, "b/img.jpg", sampleResults()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("wrote %d files, want 4 distinct crops", len(entries))
	}
}
