package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// ResNet-50 stage plan: bottleneck blocks per stage and the widths of
// their inner convolutions. All strides are 1 so the grid is never
// downsampled and the head output lands on the input's spatial dimensions.
var fcnStages = []struct {
	blocks int
	width  int
}{
	{3, 64},
	{4, 128},
	{6, 256},
	{3, 512},
}

const bottleneckExpansion = 4

// bottleneck is the ResNet-50 unit: 1x1 reduce, 3x3 periodic, 1x1 expand,
// with a projected shortcut when the output width changes.
func bottleneck(ctx *context.Context, x *graph.Node, width int) *graph.Node {
	out := width * bottleneckExpansion
	shortcut := x
	if x.Shape().Dimensions[3] != out {
		shortcut = layers.Convolution(ctx.In("proj"), x).Filters(out).KernelSize(1).Done()
		shortcut = normalize(ctx.In("proj_bn"), shortcut)
	}
	y := layers.Convolution(ctx.In("reduce"), x).Filters(width).KernelSize(1).Done()
	y = normalize(ctx.In("reduce_bn"), y)
	y = elu(y)
	y = periodicConv(ctx.In("spatial"), y, width, 3)
	y = normalize(ctx.In("spatial_bn"), y)
	y = elu(y)
	y = layers.Convolution(ctx.In("expand"), y).Filters(out).KernelSize(1).Done()
	y = normalize(ctx.In("expand_bn"), y)
	return elu(graph.Add(y, shortcut))
}

// build constructs the fully convolutional ResNet-50. The stock input stem
// and classifier are replaced by convolutions sized for the requested
// channel counts, and the adapter returns the dense prediction map
// directly.
func (c *FCNResNet50Config) build(_, outChannels int) buildFn {
	headKernel := defaultInt(c.HeadKernel, 3)
	return func(ctx *context.Context, x *graph.Node) *graph.Node {
		x = toChannelsLast(x)
		x = convBlock(ctx.In("stem"), x, 64, headKernel)
		for si, stage := range fcnStages {
			for b := 0; b < stage.blocks; b++ {
				x = bottleneck(ctx.Inf("stage_%d_block_%d", si, b), x, stage.width)
			}
		}
		x = convBlock(ctx.In("head"), x, 512, 3)
		x = periodicConv(ctx.In("head_out"), x, outChannels, headKernel)
		return toChannelsFirst(x)
	}
}
