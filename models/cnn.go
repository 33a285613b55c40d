package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

func (c *CNNConfig) build(_, outChannels int) buildFn {
	filters := defaultInts(c.Filters, []int{64, 64, 64, 64, outChannels})
	kernels := defaultInts(c.Kernels, repeatInt(5, len(filters)))
	return func(ctx *context.Context, x *graph.Node) *graph.Node {
		x = toChannelsLast(x)
		last := len(filters) - 1
		for i := range filters {
			layerCtx := ctx.Inf("conv_%d", i)
			if i == last {
				// Output layer: raw periodic convolution, no
				// activation or normalization.
				x = periodicConv(layerCtx, x, filters[i], kernels[i])
			} else {
				x = convBlock(layerCtx, x, filters[i], kernels[i])
			}
		}
		return toChannelsFirst(x)
	}
}
