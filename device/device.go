// Package device performs the one-shot detection of acceleration hardware
// and selects the numeric backend and default element dtype used by every
// tensor the experiment constructs.
//
// Hardware absence is a normal branch, not a failure: Init always returns a
// usable handle. Callers are expected to thread the returned Device through
// their tensor and model construction explicitly; Default exists for call
// sites that want the set-and-forget behavior, and is initialized exactly
// once per process with no teardown.
package device

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/klauspost/cpuid/v2"
)

// Kind identifies the class of hardware a Device runs on.
type Kind int

const (
	KindCPU Kind = iota
	KindCUDA
)

func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindCUDA:
		return "cuda"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Device is the opaque handle returned by Init: the selected backend plus
// the default dtype for tensors constructed without an explicit type.
type Device struct {
	Kind    Kind
	Name    string
	Backend backends.Backend

	// DType is the default element type, 32-bit float on either branch.
	DType dtypes.DType
}

// Init probes for CUDA devices and returns the best available Device. With
// acceleration present it selects the XLA CUDA backend; otherwise the
// pure-Go CPU backend. Both branches log a diagnostic notice.
func Init() *Device {
	if n := cudaDeviceCount(); n > 0 {
		name := cudaDeviceName()
		log.Printf("device: CUDA available, %d device(s), using %s", n, name)
		b, err := backends.NewWithConfig("xla:cuda")
		if err == nil {
			return &Device{Kind: KindCUDA, Name: name, Backend: b, DType: dtypes.Float32}
		}
		log.Printf("device: XLA CUDA backend failed (%v), falling back to CPU", err)
	} else {
		log.Print("device: CUDA not available")
	}

	b, err := simplego.New("")
	if err != nil {
		// simplego needs no hardware or plugins; this cannot fail in practice.
		log.Panicf("device: failed to create CPU backend: %v", err)
	}
	name := cpuName()
	log.Printf("device: using CPU backend on %s", name)
	return &Device{Kind: KindCPU, Name: name, Backend: b, DType: dtypes.Float32}
}

var (
	defaultOnce   sync.Once
	defaultDevice *Device
)

// Default returns the process-wide device, running Init on first use. Every
// subsequent call returns the same handle.
func Default() *Device {
	defaultOnce.Do(func() { defaultDevice = Init() })
	return defaultDevice
}

// cpuName describes the host CPU for the diagnostic notice, including the
// widest vector extension the pure-Go backend can lean on.
func cpuName() string {
	name := cpuid.CPU.BrandName
	if name == "" {
		name = runtime.GOARCH
	}
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return name + " (avx512)"
	case cpuid.CPU.Supports(cpuid.AVX2):
		return name + " (avx2)"
	default:
		return name
	}
}
