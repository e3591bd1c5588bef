package inference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// ErrNotInitialized is returned when a session is created before Initialize.
var ErrNotInitialized = errors.New("ONNX Runtime not initialized, call Initialize() first")

// Initialize sets up ONNX Runtime environment (call once at startup).
// An empty libraryPath keeps onnxruntime_go's platform default.
func Initialize(libraryPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	initialized = true
	return nil
}

// Shutdown cleans up ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session. Run calls are
// serialized, so one Session can be shared by concurrent requests.
type Session struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	modelPath   string
	device      Device
	inputNames  []string
	outputNames []string
}

// NewSession creates a new inference session on the given device. Nil
// inputNames or outputNames are read from the model file, in declaration order.
func NewSession(modelPath string, device Device, inputNames, outputNames []string) (*Session, error) {
	initMu.Lock()
	ready := initialized
	initMu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	if inputNames == nil || outputNames == nil {
		inputs, outputs, err := ModelIO(modelPath)
		if err != nil {
			return nil, err
		}
		if inputNames == nil {
			inputNames = inputs
		}
		if outputNames == nil {
			outputNames = outputs
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := appendProvider(options, device); err != nil {
		return nil, fmt.Errorf("failed to enable %s for %s: %w", device, modelPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	return &Session{
		session:     session,
		modelPath:   modelPath,
		device:      device,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// appendProvider enables the execution provider matching device. CPU needs
// no provider; a requested accelerator that cannot be enabled is an error.
func appendProvider(options *ort.SessionOptions, device Device) error {
	switch device.Kind {
	case DeviceCUDA:
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return err
		}
		defer cudaOptions.Destroy()

		if err := cudaOptions.Update(map[string]string{
			"device_id": strconv.Itoa(device.Index),
		}); err != nil {
			return err
		}
		return options.AppendExecutionProviderCUDA(cudaOptions)
	case DeviceCoreML:
		return options.AppendExecutionProviderCoreML(0)
	}
	return nil
}

// ModelIO lists the input and output names declared by an ONNX model.
func ModelIO(modelPath string) ([]string, []string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model info for %s: %w", modelPath, err)
	}

	inputNames := make([]string, len(inputs))
	for i, info := range inputs {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputs))
	for i, info := range outputs {
		outputNames[i] = info.Name
	}
	return inputNames, outputNames, nil
}

// Run executes inference with the given inputs. Nil entries in outputs are
// allocated by ONNX Runtime and must be destroyed by the caller.
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Run(inputs, outputs)
}

// RunFloat32 runs the model on a single float32 input and returns a copy of
// every output, in session output order.
func (s *Session) RunFloat32(input *ort.Tensor[float32]) ([][]float32, error) {
	outputs := make([]ort.Value, len(s.outputNames))
	if err := s.Run([]ort.Value{input}, outputs); err != nil {
		return nil, err
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	result := make([][]float32, len(outputs))
	for i, v := range outputs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q is not a float32 tensor", s.outputNames[i])
		}
		data := t.GetData()
		result[i] = make([]float32, len(data))
		copy(result[i], data)
	}
	return result, nil
}

// OutputNames returns the output names in session order
func (s *Session) OutputNames() []string {
	return s.outputNames
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// BytesToFloat32 reinterprets little-endian bytes (as returned by
// gocv.Mat.ToBytes on a CV_32F blob) as float32 values.
func BytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
