//go:build !cuda || !linux || !cgo

package device

// CUDA probing needs the driver bindings, which only build on Linux with
// CGo and the cuda tag. Everywhere else the probe reports no devices and
// Init takes the CPU branch.
func cudaDeviceCount() int { return 0 }

func cudaDeviceName() string { return "" }
