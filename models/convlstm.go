package models

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// build constructs the stacked convolutional LSTM. Input carries an
// explicit time axis, [batch, time, channel, lat, lon]; the adapter unrolls
// the recurrence over it and returns the top layer's final hidden state as
// the prediction, [batch, outChannels, lat, lon]. Filters[last] equals
// outChannels, checked by Validate, so no output projection is needed.
func (c *ConvLSTMConfig) build(_, _ int) buildFn {
	kernels := c.KernelSizes
	hidden := c.Filters
	return func(ctx *context.Context, x *graph.Node) *graph.Node {
		g := x.Graph()
		dims := x.Shape().Dimensions
		batch, steps, lat, lon := dims[0], dims[1], dims[3], dims[4]

		// Split the time axis into per-step channels-last frames.
		seq := make([]*graph.Node, steps)
		for t := 0; t < steps; t++ {
			frame := graph.Slice(x,
				graph.AxisRange(), graph.AxisElem(t),
				graph.AxisRange(), graph.AxisRange(), graph.AxisRange())
			seq[t] = toChannelsLast(graph.Squeeze(frame, 1))
		}

		var h *graph.Node
		for li := range hidden {
			// Reuse checking is off inside each cell scope: every
			// unrolled step re-requests the same gate variables, and
			// that lookup is what shares the weights across time.
			cellCtx := ctx.Inf("cell_%d", li).Checked(false)
			state := graph.Zeros(g, shapes.Make(x.DType(), batch, lat, lon, hidden[li]))
			h = state
			for t := 0; t < steps; t++ {
				h, state = convLSTMStep(cellCtx, seq[t], h, state, hidden[li], kernels[li])
				seq[t] = h
			}
		}
		return toChannelsFirst(h)
	}
}

// convLSTMStep advances one cell by one time step. All four gates come from
// a single periodic convolution over the concatenated input and hidden
// state; calling it under the same scope every step shares the weights
// across the unrolled sequence.
func convLSTMStep(ctx *context.Context, xt, h, state *graph.Node, hidden, kernel int) (*graph.Node, *graph.Node) {
	gates := periodicConv(ctx, graph.Concatenate([]*graph.Node{xt, h}, -1), 4*hidden, kernel)
	gate := func(j int) *graph.Node {
		return graph.Slice(gates,
			graph.AxisRange(), graph.AxisRange(), graph.AxisRange(),
			graph.AxisRange(j*hidden, (j+1)*hidden))
	}
	input := graph.Sigmoid(gate(0))
	forget := graph.Sigmoid(gate(1))
	output := graph.Sigmoid(gate(2))
	candidate := graph.Tanh(gate(3))

	state = graph.Add(graph.Mul(forget, state), graph.Mul(input, candidate))
	h = graph.Mul(output, graph.Tanh(state))
	return h, state
}
