package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
)

// Builders work internally in channels-last layout; the public contract is
// channels-first, so every variant converts on the way in and out.

func toChannelsLast(x *graph.Node) *graph.Node {
	return graph.TransposeAllDims(x, 0, 2, 3, 1)
}

func toChannelsFirst(x *graph.Node) *graph.Node {
	return graph.TransposeAllDims(x, 0, 3, 1, 2)
}

// periodicPad pads the two spatial axes of a [batch, lat, lon, channel]
// node by wrapping around, so that a subsequent valid convolution preserves
// the spatial size while respecting the longitudinal periodicity of the
// grid.
func periodicPad(x *graph.Node, pad int) *graph.Node {
	if pad == 0 {
		return x
	}
	for _, axis := range []int{1, 2} {
		n := x.Shape().Dimensions[axis]
		spec := func(r graph.SliceAxisSpec) []graph.SliceAxisSpec {
			specs := []graph.SliceAxisSpec{graph.AxisRange(), graph.AxisRange(), graph.AxisRange(), graph.AxisRange()}
			specs[axis] = r
			return specs
		}
		lo := graph.Slice(x, spec(graph.AxisRange(n-pad, n))...)
		hi := graph.Slice(x, spec(graph.AxisRange(0, pad))...)
		x = graph.Concatenate([]*graph.Node{lo, x, hi}, axis)
	}
	return x
}

// periodicConv is a square convolution over periodically padded input; the
// output keeps the input's spatial dimensions.
func periodicConv(ctx *context.Context, x *graph.Node, filters, kernel int) *graph.Node {
	x = periodicPad(x, (kernel-1)/2)
	return layers.Convolution(ctx, x).Filters(filters).KernelSize(kernel).NoPadding().Done()
}

func elu(x *graph.Node) *graph.Node {
	zeros := graph.ZerosLike(x)
	return graph.Where(graph.GreaterOrEqual(x, zeros), x, graph.Expm1(x))
}

// convBlock is the repeated periodic-conv / ELU / batch-norm unit shared by
// the feed-forward variants.
func convBlock(ctx *context.Context, x *graph.Node, filters, kernel int) *graph.Node {
	x = periodicConv(ctx, x, filters, kernel)
	x = elu(x)
	return normalize(ctx, x)
}

// normalize is the batch norm applied after every convolution block. The
// backend inference op is disabled so the lowered primitive form runs on
// backends that do not implement it, the pure Go one included.
func normalize(ctx *context.Context, x *graph.Node) *graph.Node {
	return batchnorm.New(ctx, x, -1).UseBackendInference(false).Done()
}

func defaultInts(v []int, def []int) []int {
	if len(v) == 0 {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func repeatInt(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
