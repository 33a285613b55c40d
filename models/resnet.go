package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// residualBlock is two periodic-conv/batch-norm pairs around an identity
// shortcut, with a 1x1 projection when the channel count changes.
func residualBlock(ctx *context.Context, x *graph.Node, filters, kernel int) *graph.Node {
	shortcut := x
	if x.Shape().Dimensions[3] != filters {
		shortcut = layers.Convolution(ctx.In("proj"), x).Filters(filters).KernelSize(1).Done()
	}
	y := periodicConv(ctx.In("conv_a"), x, filters, kernel)
	y = normalize(ctx.In("bn_a"), y)
	y = elu(y)
	y = periodicConv(ctx.In("conv_b"), y, filters, kernel)
	y = normalize(ctx.In("bn_b"), y)
	return elu(graph.Add(y, shortcut))
}

func (c *ResNetConfig) build(_, outChannels int) buildFn {
	stages := defaultInts(c.Layers, []int{4})
	filters := defaultInts(c.Filters, []int{64, 64, 128, 256, 512})
	if len(filters) > len(stages)+1 {
		// Default filter list trimmed to the configured depth.
		filters = filters[:len(stages)+1]
	}
	kernel := defaultInt(c.KernelSize, 3)
	return func(ctx *context.Context, x *graph.Node) *graph.Node {
		x = toChannelsLast(x)
		x = convBlock(ctx.In("stem"), x, filters[0], kernel)
		for si, blocks := range stages {
			for b := 0; b < blocks; b++ {
				x = residualBlock(ctx.Inf("stage_%d_block_%d", si, b), x, filters[si+1], kernel)
			}
		}
		x = periodicConv(ctx.In("head"), x, outChannels, 1)
		return toChannelsFirst(x)
	}
}
