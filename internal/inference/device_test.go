package inference

import (
	"errors"
	"math"
	"testing"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"", CPU, false},
		{"cpu", CPU, false},
		{" CPU ", CPU, false},
		{"cuda", Device{Kind: DeviceCUDA}, false},
		{"cuda:0", Device{Kind: DeviceCUDA}, false},
		{"cuda:3", Device{Kind: DeviceCUDA, Index: 3}, false},
		{"coreml", Device{Kind: DeviceCoreML}, false},
		{"cuda:-1", Device{}, true},
		{"cuda:x", Device{}, true},
		{"mps", Device{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDevice(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDevice) {
					t.Fatalf("ParseDevice(%q) error = %v, want ErrInvalidDevice", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDevice(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDevice(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeviceString(t *testing.T) {
	if CPU.String() != "cpu" {
		t.Errorf("CPU.String() = %q", CPU.String())
	}
	d := Device{Kind: DeviceCUDA, Index: 1}
	if d.String() != "cuda:1" {
		t.Errorf("String() = %q, want cuda:1", d.String())
	}
	for _, dev := range []Device{CPU, d, {Kind: DeviceCoreML}} {
		back, err := ParseDevice(dev.String())
		if err != nil || back != dev {
			t.Errorf("round trip of %v = %+v, %v", dev, back, err)
		}
	}
}

func TestBytesToFloat32(t *testing.T) {
	// 1.0 and -2.5 in little-endian IEEE 754
	data := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x20, 0xc0}
	got := BytesToFloat32(data)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if math.Abs(float64(got[0]-1.0)) > 1e-9 || math.Abs(float64(got[1]+2.5)) > 1e-9 {
		t.Errorf("got %v, want [1 -2.5]", got)
	}
}

func TestNewSessionRequiresInitialize(t *testing.T) {
	_, err := NewSession("missing.onnx", CPU, []string{"in"}, []string{"out"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("NewSession before Initialize = %v, want ErrNotInitialized", err)
	}
}

func TestInspectRequiresInitialize(t *testing.T) {
	if _, err := Inspect("models/missing.onnx"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Inspect before Initialize = %v, want ErrNotInitialized", err)
	}
}
