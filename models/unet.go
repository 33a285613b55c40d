package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// build constructs the periodic U-Net: each encoder level is a conv block
// followed by pooling, the decoder mirrors it with nearest-neighbor
// upsampling and skip concatenation, and a final 1x1 convolution maps to
// the output channels.
func (c *UNetConfig) build(_, outChannels int) buildFn {
	filters := defaultInts(c.Filters, []int{32, 32, 32, 32})
	kernels := defaultInts(c.Kernels, repeatInt(5, len(filters)))
	pooling := defaultInt(c.Pooling, 2)
	return func(ctx *context.Context, x *graph.Node) *graph.Node {
		x = toChannelsLast(x)

		depth := len(filters)
		skips := make([]*graph.Node, 0, depth)
		for i := 0; i < depth; i++ {
			x = convBlock(ctx.Inf("down_%d", i), x, filters[i], kernels[i])
			skips = append(skips, x)
			if i < depth-1 {
				x = graph.MaxPool(x).Window(pooling).Done()
			}
		}

		for i := depth - 2; i >= 0; i-- {
			skip := skips[i]
			dims := skip.Shape().Dimensions
			x = graph.Interpolate(x, dims[0], dims[1], dims[2], x.Shape().Dimensions[3]).
				Nearest().Done()
			x = graph.Concatenate([]*graph.Node{x, skip}, -1)
			x = convBlock(ctx.Inf("up_%d", i), x, filters[i], kernels[i])
		}

		x = periodicConv(ctx.In("head"), x, outChannels, 1)
		return toChannelsFirst(x)
	}
}
