package models

import "fmt"

// CNNConfig configures the plain convolutional stack ("cnnbn"): a chain of
// periodic convolutions with ELU and batch norm between them. The final
// entry of Filters is the output layer, so when Filters is given explicitly
// its last value must equal the requested output channels.
type CNNConfig struct {
	Filters []int // per-layer channel counts; zero value means [64 64 64 64 out]
	Kernels []int // per-layer square kernel sizes; zero value means all 5
}

func (*CNNConfig) modelName() string { return "cnnbn" }

func (c *CNNConfig) Validate(_, outChannels int) error {
	if len(c.Filters) == 0 && len(c.Kernels) == 0 {
		return nil
	}
	if len(c.Filters) != len(c.Kernels) {
		return fmt.Errorf("got %d filters but %d kernels", len(c.Filters), len(c.Kernels))
	}
	if last := c.Filters[len(c.Filters)-1]; last != outChannels {
		return fmt.Errorf("final filter count %d is the output layer and must equal %d output channels", last, outChannels)
	}
	return validateLayerSizes(c.Filters, c.Kernels)
}

// UNetConfig configures the encoder/decoder network ("Unetbn").
type UNetConfig struct {
	Filters []int // channel count per depth level; zero value means [32 32 32 32]
	Kernels []int // kernel size per depth level; zero value means all 5
	Pooling int   // downsampling factor between levels; zero value means 2
}

func (*UNetConfig) modelName() string { return "Unetbn" }

func (c *UNetConfig) Validate(_, _ int) error {
	if c.Pooling < 0 || c.Pooling == 1 {
		return fmt.Errorf("pooling factor must be at least 2, got %d", c.Pooling)
	}
	if len(c.Filters) == 0 && len(c.Kernels) == 0 {
		return nil
	}
	if len(c.Filters) != len(c.Kernels) {
		return fmt.Errorf("got %d filters but %d kernels", len(c.Filters), len(c.Kernels))
	}
	return validateLayerSizes(c.Filters, c.Kernels)
}

// FCNResNet50Config configures the fully convolutional ResNet-50 variant
// ("tvfcnResnet50"): a stride-free ResNet-50 trunk with a convolutional
// segmentation-style head whose first and last layers are resized to the
// requested channel counts.
type FCNResNet50Config struct {
	HeadKernel int // kernel size of the replacement input and output convolutions; zero value means 3
}

func (*FCNResNet50Config) modelName() string { return "tvfcnResnet50" }

func (c *FCNResNet50Config) Validate(_, _ int) error {
	if c.HeadKernel < 0 || (c.HeadKernel > 0 && c.HeadKernel%2 == 0) {
		return fmt.Errorf("head kernel size must be odd and positive, got %d", c.HeadKernel)
	}
	return nil
}

// ResNetConfig configures the compact residual network ("simpleResnet").
// Filters[0] is the stem width and Filters[i+1] the width of residual stage
// i, so Filters must hold one more entry than Layers.
type ResNetConfig struct {
	Layers     []int // residual blocks per stage; zero value means [4]
	Filters    []int // stem plus per-stage channel counts; zero value means [64 64 128 256 512]
	KernelSize int   // kernel size of every convolution; zero value means 3
}

func (*ResNetConfig) modelName() string { return "simpleResnet" }

func (c *ResNetConfig) Validate(_, _ int) error {
	if c.KernelSize < 0 || (c.KernelSize > 0 && c.KernelSize%2 == 0) {
		return fmt.Errorf("kernel size must be odd and positive, got %d", c.KernelSize)
	}
	if len(c.Layers) == 0 && len(c.Filters) == 0 {
		return nil
	}
	if len(c.Filters) != len(c.Layers)+1 {
		return fmt.Errorf("need %d filter counts (stem plus one per stage) for %d stages, got %d",
			len(c.Layers)+1, len(c.Layers), len(c.Filters))
	}
	for i, n := range c.Layers {
		if n <= 0 {
			return fmt.Errorf("stage %d has %d blocks, want at least 1", i, n)
		}
	}
	for i, f := range c.Filters {
		if f <= 0 {
			return fmt.Errorf("filter count %d at position %d, want positive", f, i)
		}
	}
	return nil
}

// ConvLSTMConfig configures the recurrent variant ("ConvLSTM"). Each layer
// pairs a kernel size with a hidden channel count; the last hidden count is
// the network's output width and must equal the requested output channels.
type ConvLSTMConfig struct {
	KernelSizes []int // per-layer convolution kernel sizes
	Filters     []int // per-layer hidden channel counts; last entry is the output width
}

func (*ConvLSTMConfig) modelName() string { return "ConvLSTM" }

func (c *ConvLSTMConfig) Validate(_, outChannels int) error {
	if len(c.KernelSizes) == 0 || len(c.Filters) == 0 {
		return fmt.Errorf("kernel sizes and filters are required")
	}
	if len(c.KernelSizes) != len(c.Filters) {
		return fmt.Errorf("got %d kernel sizes but %d filters", len(c.KernelSizes), len(c.Filters))
	}
	if last := c.Filters[len(c.Filters)-1]; last != outChannels {
		return fmt.Errorf("final hidden dim %d must equal %d output channels", last, outChannels)
	}
	return validateLayerSizes(c.Filters, c.KernelSizes)
}

func validateLayerSizes(filters, kernels []int) error {
	for i, f := range filters {
		if f <= 0 {
			return fmt.Errorf("filter count %d at layer %d, want positive", f, i)
		}
	}
	for i, k := range kernels {
		if k <= 0 || k%2 == 0 {
			return fmt.Errorf("kernel size %d at layer %d, want odd and positive", k, i)
		}
	}
	return nil
}
