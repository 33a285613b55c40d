package models

import (
	"errors"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

func TestNewUnsupportedName(t *testing.T) {
	_, err := New("perceptron", 8, 2, nil)
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("New returned %v, want ErrUnsupportedModel", err)
	}
}

func TestNewDefaults(t *testing.T) {
	for _, name := range []string{"cnnbn", "Unetbn", "tvfcnResnet50", "simpleResnet"} {
		m, err := New(name, 8, 2, nil)
		if err != nil {
			t.Fatalf("New(%q) with default configuration: %v", name, err)
		}
		if m.Name() != name {
			t.Errorf("Name() = %q, want %q", m.Name(), name)
		}
		if m.Context() == nil {
			t.Errorf("New(%q) returned model without a context", name)
		}
	}
}

func TestNewConvLSTM(t *testing.T) {
	cfg := &ConvLSTMConfig{KernelSizes: []int{3, 3}, Filters: []int{16, 2}}
	m, err := New("ConvLSTM", 8, 2, cfg)
	if err != nil {
		t.Fatalf("New(ConvLSTM): %v", err)
	}
	if m.Name() != "ConvLSTM" {
		t.Errorf("Name() = %q, want ConvLSTM", m.Name())
	}
}

func TestNewConvLSTMHiddenDimMismatch(t *testing.T) {
	// The final hidden dim is the output width; a mismatch must be
	// rejected up front.
	cfg := &ConvLSTMConfig{KernelSizes: []int{3, 3}, Filters: []int{16, 3}}
	if _, err := New("ConvLSTM", 8, 2, cfg); err == nil {
		t.Fatal("New accepted a ConvLSTM whose final hidden dim differs from the output channels")
	}
}

func TestNewConfigTagMismatch(t *testing.T) {
	if _, err := New("cnnbn", 8, 2, &UNetConfig{}); err == nil {
		t.Fatal("New accepted a Unetbn configuration for cnnbn")
	}
}

func TestNewRejectsBadChannelCounts(t *testing.T) {
	if _, err := New("cnnbn", 0, 2, nil); err == nil {
		t.Fatal("New accepted zero input channels")
	}
	if _, err := New("cnnbn", 8, -1, nil); err == nil {
		t.Fatal("New accepted negative output channels")
	}
}

func testBackend(t *testing.T) backends.Backend {
	t.Helper()
	backend, err := simplego.New("")
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	return backend
}

func equalDims(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Every feed-forward variant must build and execute a forward graph and
// return the normalized [batch, outChannels, lat, lon] prediction.
func TestForwardOutputShapes(t *testing.T) {
	backend := testBackend(t)
	const (
		batch, in, out = 2, 5, 2
		lat, lon       = 4, 8
	)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"cnnbn", &CNNConfig{Filters: []int{4, out}, Kernels: []int{3, 3}}},
		{"Unetbn", &UNetConfig{Filters: []int{4, 4}, Kernels: []int{3, 3}, Pooling: 2}},
		{"tvfcnResnet50", nil},
		{"simpleResnet", &ResNetConfig{Layers: []int{1}, Filters: []int{4, 4}, KernelSize: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.name, in, out, tt.cfg)
			if err != nil {
				t.Fatalf("New(%q): %v", tt.name, err)
			}
			exec, err := m.NewExec(backend)
			if err != nil {
				t.Fatalf("NewExec: %v", err)
			}
			input := tensors.FromFlatDataAndDimensions(
				make([]float32, batch*in*lat*lon), batch, in, lat, lon)
			outs, err := exec.Exec(input)
			if err != nil {
				t.Fatalf("Exec: %v", err)
			}
			if len(outs) != 1 {
				t.Fatalf("forward returned %d outputs, want 1", len(outs))
			}
			got := outs[0].Shape().Dimensions
			if want := []int{batch, out, lat, lon}; !equalDims(got, want) {
				t.Errorf("output shape %v, want %v", got, want)
			}
		})
	}
}

// The recurrent variant takes an explicit time axis and must unroll it,
// sharing gate weights across steps, down to the final hidden state.
func TestConvLSTMForward(t *testing.T) {
	backend := testBackend(t)
	const (
		batch, steps, in, out = 1, 2, 3, 2
		lat, lon              = 4, 8
	)
	m, err := New("ConvLSTM", in, out, &ConvLSTMConfig{
		KernelSizes: []int{3, 3},
		Filters:     []int{16, out},
	})
	if err != nil {
		t.Fatalf("New(ConvLSTM): %v", err)
	}
	exec, err := m.NewExec(backend)
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	input := tensors.FromFlatDataAndDimensions(
		make([]float32, batch*steps*in*lat*lon), batch, steps, in, lat, lon)
	outs, err := exec.Exec(input)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(outs) != 1 {
		t.Fatalf("forward returned %d outputs, want 1", len(outs))
	}
	got := outs[0].Shape().Dimensions
	if want := []int{batch, out, lat, lon}; !equalDims(got, want) {
		t.Errorf("output shape %v, want %v", got, want)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		out     int
		wantErr bool
	}{
		{"cnn default", &CNNConfig{}, 2, false},
		{"cnn explicit", &CNNConfig{Filters: []int{64, 64, 2}, Kernels: []int{5, 5, 5}}, 2, false},
		{"cnn length mismatch", &CNNConfig{Filters: []int{64, 2}, Kernels: []int{5}}, 2, true},
		{"cnn wrong output width", &CNNConfig{Filters: []int{64, 3}, Kernels: []int{5, 5}}, 2, true},
		{"cnn even kernel", &CNNConfig{Filters: []int{64, 2}, Kernels: []int{4, 5}}, 2, true},
		{"unet default", &UNetConfig{}, 2, false},
		{"unet pooling one", &UNetConfig{Pooling: 1}, 2, true},
		{"unet length mismatch", &UNetConfig{Filters: []int{32, 32}, Kernels: []int{5}}, 2, true},
		{"fcn default", &FCNResNet50Config{}, 2, false},
		{"fcn even head kernel", &FCNResNet50Config{HeadKernel: 4}, 2, true},
		{"resnet default", &ResNetConfig{}, 2, false},
		{"resnet missing stem filter", &ResNetConfig{Layers: []int{2, 2}, Filters: []int{64, 128}}, 2, true},
		{"resnet empty stage", &ResNetConfig{Layers: []int{0}, Filters: []int{64, 64}}, 2, true},
		{"convlstm empty", &ConvLSTMConfig{}, 2, true},
		{"convlstm length mismatch", &ConvLSTMConfig{KernelSizes: []int{3}, Filters: []int{16, 2}}, 2, true},
		{"convlstm ok", &ConvLSTMConfig{KernelSizes: []int{3, 3}, Filters: []int{16, 2}}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(8, tt.out)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
