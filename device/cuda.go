//go:build cuda && linux && cgo

package device

import "gorgonia.org/cu"

// cudaDeviceCount reports the number of CUDA devices the driver exposes.
func cudaDeviceCount() int {
	n, err := cu.NumDevices()
	if err != nil {
		return 0
	}
	return n
}

// cudaDeviceName names the first CUDA device.
func cudaDeviceName() string {
	name, err := cu.Device(0).Name()
	if err != nil {
		return "cuda:0"
	}
	return name
}
