package emotion

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownModel is returned when a model name is not in the registry
var ErrUnknownModel = errors.New("unknown emotion model")

// labels8 is the label order of the 8-class EfficientNet models
var labels8 = []string{"Anger", "Contempt", "Disgust", "Fear", "Happiness", "Neutral", "Sadness", "Surprise"}

// labels7 drops Contempt
var labels7 = []string{"Anger", "Disgust", "Fear", "Happiness", "Neutral", "Sadness", "Surprise"}

// ModelSpec describes one pretrained emotion model
type ModelSpec struct {
	Name      string
	InputSize int
	Labels    []string
	// MultiTask models append valence and arousal after the class logits
	MultiTask bool
}

// Path returns the model file inside dir
func (m ModelSpec) Path(dir string) string {
	return filepath.Join(dir, m.Name+".onnx")
}

var registry = []ModelSpec{
	{Name: "enet_b0_8_best_vgaf", InputSize: 224, Labels: labels8},
	{Name: "enet_b0_8_best_afew", InputSize: 224, Labels: labels8},
	{Name: "enet_b2_8", InputSize: 260, Labels: labels8},
	{Name: "enet_b0_8_va_mtl", InputSize: 224, Labels: labels8, MultiTask: true},
	{Name: "enet_b2_7", InputSize: 260, Labels: labels7},
}

// DefaultModel is used when no model is configured. It is the first entry
// of ListModels; configure EMOTION_MODEL to pin a different one.
const DefaultModel = "enet_b0_8_best_vgaf"

// ListModels returns the known model names in registry order
func ListModels() []string {
	names := make([]string, len(registry))
	for i, m := range registry {
		names[i] = m.Name
	}
	return names
}

// Lookup resolves a model name. An empty name resolves to DefaultModel.
func Lookup(name string) (ModelSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultModel
	}
	for _, m := range registry {
		if m.Name == name {
			spec := m
			spec.Labels = append([]string(nil), m.Labels...)
			return spec, nil
		}
	}
	return ModelSpec{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownModel, name, strings.Join(ListModels(), ", "))
}
