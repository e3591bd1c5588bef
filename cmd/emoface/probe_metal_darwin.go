//go:build darwin

package main

import (
	"fmt"
	"io"

	"github.com/tsawler/go-metal/checkpoints"
)

// metalImport reports whether go-metal can import the model. go-metal only
// supports a small operator set, so detectors usually fail here.
func metalImport(w io.Writer, modelPath string) error {
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(modelPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  Layers: %d\n", len(checkpoint.ModelSpec.Layers))
	fmt.Fprintf(w, "  Weights: %d tensors\n", len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Fprintf(w, "  %d: %s (%v)\n", i+1, layer.Name, layer.Type)
	}
	return nil
}
