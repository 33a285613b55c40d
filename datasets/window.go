package datasets

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/weatherml/gridcast/catalog"
)

// Dataset is the surface a training loop consumes. WindowDataset implements
// it; Yield and Restart follow gomlx's train.Dataset conventions, with Yield
// returning io.EOF when an epoch is exhausted.
type Dataset interface {
	Name() string
	Len() int
	Example(i int) (input, target []float32, err error)
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Restart() error
}

// ViewConfig configures one windowed view over a shared Backing.
type ViewConfig struct {
	// Vars and TargetVars select the input and target channel composition.
	Vars       catalog.Catalog
	TargetVars catalog.Catalog

	// LeadTime is the forecast horizon in timesteps (non-negative).
	LeadTime int

	// Start and End bound the view, [Start, End), on the backing time axis.
	Start, End int

	// PastTimes are non-positive offsets of additional historical input
	// frames relative to the reference time. The reference frame itself is
	// always included.
	PastTimes []int

	// PastTimesOwnAxis serves past frames on their own tensor axis instead
	// of concatenating them into the channel axis.
	PastTimesOwnAxis bool

	// RandomizeOrder serves samples in a shuffled order, reshuffled on every
	// Restart. Chronological otherwise.
	RandomizeOrder bool

	// BatchSize used by Yield. Defaults to 32.
	BatchSize int

	// Seed for the shuffle RNG. Time-based when zero.
	Seed int64

	Verbose bool
}

// WindowDataset is one split's view of the backing array: a contiguous
// [start, end) window on the time axis with its own ordering and channel
// composition. Views never mutate the backing storage.
type WindowDataset struct {
	name    string
	backing *Backing
	cfg     ViewConfig

	// offsets is past times plus the reference frame, ascending.
	offsets  []int
	inChans  []int
	outChans []int

	order  []int
	cursor int
	rng    *rand.Rand
}

// NewWindowDataset builds a view over b. The window must satisfy the
// resolver's contract: every sample index together with its past and lead
// offsets must stay inside the backing time axis.
func NewWindowDataset(name string, b *Backing, cfg ViewConfig) (*WindowDataset, error) {
	if b == nil || b.Data == nil {
		return nil, fmt.Errorf("backing array is nil or closed")
	}
	if cfg.LeadTime < 0 {
		return nil, fmt.Errorf("lead time must be non-negative, got %d", cfg.LeadTime)
	}
	if cfg.End <= cfg.Start {
		return nil, fmt.Errorf("resolved window [%d, %d) for %s is empty", cfg.Start, cfg.End, name)
	}

	offsets := []int{0}
	for _, p := range cfg.PastTimes {
		if p > 0 {
			return nil, fmt.Errorf("past-time offsets must be non-positive, got %d", p)
		}
		if p != 0 {
			offsets = append(offsets, p)
		}
	}
	sort.Ints(offsets)

	deepest := offsets[0]
	if cfg.Start+deepest < 0 {
		return nil, fmt.Errorf("window start %d breaks the past-times runway (deepest offset %d)", cfg.Start, deepest)
	}
	if cfg.End-1+cfg.LeadTime >= b.TimeLen() {
		return nil, fmt.Errorf("window end %d with lead %d runs past the backing axis (length %d)",
			cfg.End, cfg.LeadTime, b.TimeLen())
	}

	inChans, err := resolveChannels(b, cfg.Vars)
	if err != nil {
		return nil, fmt.Errorf("input channels for %s: %w", name, err)
	}
	outChans, err := resolveChannels(b, cfg.TargetVars)
	if err != nil {
		return nil, fmt.Errorf("target channels for %s: %w", name, err)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	d := &WindowDataset{
		name:     name,
		backing:  b,
		cfg:      cfg,
		offsets:  offsets,
		inChans:  inChans,
		outChans: outChans,
		rng:      rand.New(rand.NewSource(seed)),
	}
	d.resetOrder()

	if cfg.Verbose {
		log.Printf("dataset %s: window [%d, %d), %d samples, input shape %v, target shape %v",
			name, cfg.Start, cfg.End, d.Len(), d.InputShape(), d.TargetShape())
	}
	return d, nil
}

func resolveChannels(b *Backing, cat catalog.Catalog) ([]int, error) {
	names := cat.ChannelNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog selects no channels")
	}
	chans := make([]int, len(names))
	for i, n := range names {
		ch, err := b.ChannelIndex(n)
		if err != nil {
			return nil, err
		}
		chans[i] = ch
	}
	return chans, nil
}

// Name returns the split name ("train", "validation", "test").
func (d *WindowDataset) Name() string { return d.name }

// Len returns the number of samples in the window.
func (d *WindowDataset) Len() int { return d.cfg.End - d.cfg.Start }

// Backing exposes the shared storage handle. All views of one Load return
// the same pointer.
func (d *WindowDataset) Backing() *Backing { return d.backing }

// InputShape returns the per-sample input dimensions (no batch axis).
func (d *WindowDataset) InputShape() []int {
	lat, lon := d.backing.GridSize()
	if d.cfg.PastTimesOwnAxis {
		return []int{len(d.offsets), len(d.inChans), lat, lon}
	}
	return []int{len(d.offsets) * len(d.inChans), lat, lon}
}

// TargetShape returns the per-sample target dimensions (no batch axis).
func (d *WindowDataset) TargetShape() []int {
	lat, lon := d.backing.GridSize()
	return []int{len(d.outChans), lat, lon}
}

// Example assembles the i-th sample of the window: input frames at every
// past offset plus the reference time, and the target frame at reference
// plus lead time. i is window-relative.
func (d *WindowDataset) Example(i int) (input, target []float32, err error) {
	if i < 0 || i >= d.Len() {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}
	t := d.cfg.Start + i

	lat, lon := d.backing.GridSize()
	plane := lat * lon

	input = make([]float32, len(d.offsets)*len(d.inChans)*plane)
	pos := 0
	for _, off := range d.offsets {
		for _, ch := range d.inChans {
			copy(input[pos:pos+plane], d.backing.Frame(t+off, ch))
			pos += plane
		}
	}

	target = make([]float32, len(d.outChans)*plane)
	pos = 0
	for _, ch := range d.outChans {
		copy(target[pos:pos+plane], d.backing.Frame(t+d.cfg.LeadTime, ch))
		pos += plane
	}
	return input, target, nil
}

// Batch assembles the given window-relative indices into flat contiguous
// buffers, one sample after another.
func (d *WindowDataset) Batch(indices []int) (inputs, targets []float32, err error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	var inDim, outDim int
	for bi, i := range indices {
		in, tg, err := d.Example(i)
		if err != nil {
			return nil, nil, err
		}
		if bi == 0 {
			inDim, outDim = len(in), len(tg)
			inputs = make([]float32, len(indices)*inDim)
			targets = make([]float32, len(indices)*outDim)
		}
		copy(inputs[bi*inDim:], in)
		copy(targets[bi*outDim:], tg)
	}
	return inputs, targets, nil
}

// Yield returns the next batch of the current epoch as gomlx tensors, or
// io.EOF once the window is exhausted. The final batch of an epoch may be
// short.
func (d *WindowDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	endIdx := d.cursor + d.cfg.BatchSize
	if endIdx > len(d.order) {
		endIdx = len(d.order)
	}
	batch := d.order[d.cursor:endIdx]
	d.cursor = endIdx

	in, tg, err := d.Batch(batch)
	if err != nil {
		return nil, nil, nil, err
	}

	inDims := append([]int{len(batch)}, d.InputShape()...)
	tgDims := append([]int{len(batch)}, d.TargetShape()...)
	inT := tensors.FromFlatDataAndDimensions(in, inDims...)
	tgT := tensors.FromFlatDataAndDimensions(tg, tgDims...)
	return nil, []*tensors.Tensor{inT}, []*tensors.Tensor{tgT}, nil
}

// Restart begins a new epoch, reshuffling when the view is randomized.
func (d *WindowDataset) Restart() error {
	d.resetOrder()
	return nil
}

func (d *WindowDataset) resetOrder() {
	if d.order == nil {
		d.order = make([]int, d.Len())
		for i := range d.order {
			d.order[i] = i
		}
	}
	if d.cfg.RandomizeOrder {
		d.rng.Shuffle(len(d.order), func(i, j int) {
			d.order[i], d.order[j] = d.order[j], d.order[i]
		})
	}
	d.cursor = 0
}
