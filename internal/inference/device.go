package inference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DeviceKind selects where models run
type DeviceKind int

const (
	DeviceCPU DeviceKind = iota
	DeviceCUDA
	// DeviceCoreML runs through ONNX Runtime's CoreML provider on macOS
	DeviceCoreML
)

// ErrInvalidDevice is returned by ParseDevice for unknown selectors
var ErrInvalidDevice = errors.New("invalid device")

// Device is a validated device selector: the CPU, or an accelerator by index.
type Device struct {
	Kind  DeviceKind
	Index int
}

// CPU is the default device
var CPU = Device{Kind: DeviceCPU}

// ParseDevice accepts "cpu", "cuda", "cuda:N" and "coreml".
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case s == "" || s == "cpu":
		return CPU, nil
	case s == "cuda":
		return Device{Kind: DeviceCUDA}, nil
	case s == "coreml":
		return Device{Kind: DeviceCoreML}, nil
	case strings.HasPrefix(s, "cuda:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(s, "cuda:"))
		if err != nil || idx < 0 {
			return Device{}, fmt.Errorf("%w: %q", ErrInvalidDevice, s)
		}
		return Device{Kind: DeviceCUDA, Index: idx}, nil
	}

	return Device{}, fmt.Errorf("%w: %q (use cpu, cuda, cuda:N or coreml)", ErrInvalidDevice, s)
}

func (d Device) String() string {
	switch d.Kind {
	case DeviceCUDA:
		return fmt.Sprintf("cuda:%d", d.Index)
	case DeviceCoreML:
		return "coreml"
	}
	return "cpu"
}
