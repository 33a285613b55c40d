// Package models selects and configures one of the forecasting network
// architectures by name.
//
// Each architecture is a tagged configuration record with its own validated
// fields; the set is closed ({cnnbn, Unetbn, tvfcnResnet50, simpleResnet,
// ConvLSTM}) and unknown names are rejected with ErrUnsupportedModel.
// Validation runs before any graph construction, so a contract violation
// (for example a ConvLSTM whose final hidden dim does not match the
// requested output channels) never leaves a half-built model behind.
//
// Every variant is normalized behind the same Forward operation: builders
// that naturally produce something richer (the ConvLSTM's stacked state
// sequences) extract the conventional output inside their own adapter, so
// call sites never branch on the architecture.
package models

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// ErrUnsupportedModel is returned by New for names outside the closed
// variant set.
var ErrUnsupportedModel = errors.New("unsupported model")

// buildFn builds the forward graph for one variant. Input layout is
// [batch, channel, lat, lon] ([batch, time, channel, lat, lon] for the
// ConvLSTM); output is always [batch, outChannels, lat, lon].
type buildFn func(ctx *context.Context, x *graph.Node) *graph.Node

// Config is one variant's tagged configuration record.
type Config interface {
	// modelName ties the record to its dispatch tag.
	modelName() string

	// Validate checks the variant's schema against the requested channel
	// counts before any construction happens.
	Validate(inChannels, outChannels int) error

	// build returns the variant's graph builder.
	build(inChannels, outChannels int) buildFn
}

// Model is a constructed architecture: its variable context plus the
// normalized forward function.
type Model struct {
	name string
	ctx  *context.Context
	fn   buildFn
}

// defaults instantiates each variant's zero configuration; zero-valued
// fields are filled with the architecture's conventional values at build
// time.
var defaults = map[string]func() Config{
	"cnnbn":         func() Config { return &CNNConfig{} },
	"Unetbn":        func() Config { return &UNetConfig{} },
	"tvfcnResnet50": func() Config { return &FCNResNet50Config{} },
	"simpleResnet":  func() Config { return &ResNetConfig{} },
	"ConvLSTM":      func() Config { return &ConvLSTMConfig{} },
}

// New dispatches on the model name and returns a constructed model. cfg may
// be nil to take the variant's defaults; a non-nil cfg must carry the same
// tag as name.
func New(name string, inChannels, outChannels int, cfg Config) (*Model, error) {
	if inChannels <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("channel counts must be positive, got %d in / %d out", inChannels, outChannels)
	}
	def, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
	}
	if cfg == nil {
		cfg = def()
	}
	if cfg.modelName() != name {
		return nil, fmt.Errorf("configuration %T does not apply to model %q", cfg, name)
	}
	if err := cfg.Validate(inChannels, outChannels); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", name, err)
	}
	return &Model{
		name: name,
		ctx:  context.New(),
		fn:   cfg.build(inChannels, outChannels),
	}, nil
}

// Name returns the dispatch tag the model was constructed from.
func (m *Model) Name() string { return m.name }

// Context exposes the model's variable context, e.g. for checkpointing or
// optimizer wiring.
func (m *Model) Context() *context.Context { return m.ctx }

// Forward is the normalized single-argument call: it extends the graph x
// belongs to with the model's computation and returns the prediction node.
func (m *Model) Forward(x *graph.Node) *graph.Node {
	return m.fn(m.ctx, x)
}

// NewExec compiles the forward pass against a backend for repeated
// execution.
func (m *Model) NewExec(backend backends.Backend) (*context.Exec, error) {
	fn := m.fn
	return context.NewExec(backend, m.ctx, func(ctx *context.Context, x *graph.Node) *graph.Node {
		return fn(ctx, x)
	})
}
