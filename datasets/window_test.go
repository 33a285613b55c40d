package datasets

import (
	"io"
	"testing"

	"github.com/weatherml/gridcast/catalog"
)

var (
	testVars    = catalog.Catalog{{Name: "z", Levels: []int{500}}, {Name: "t", Levels: []int{850}}}
	testTargets = catalog.Catalog{{Name: "z", Levels: []int{500}}}
)

func openFixture(t *testing.T, steps int) *Backing {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, steps)
	b, err := OpenBacking(dir, "", MapRead, false)
	if err != nil {
		t.Fatalf("OpenBacking failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestWindowDataset_SampleComposition(t *testing.T) {
	b := openFixture(t, 30)

	ds, err := NewWindowDataset("train", b, ViewConfig{
		Vars:       testVars,
		TargetVars: testTargets,
		LeadTime:   6,
		Start:      2,
		End:        24,
		PastTimes:  []int{-2, -1},
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}

	if got, want := ds.Len(), 22; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}

	// Sample 0 sits at backing timestep 2. Input frames come from timesteps
	// 0, 1, 2 (offsets -2, -1, 0) for channels z_500 (0) and t_850 (1); the
	// target is z_500 at timestep 8.
	in, tg, err := ds.Example(0)
	if err != nil {
		t.Fatalf("Example(0) failed: %v", err)
	}
	wantIn := []float32{0, 1, 100, 101, 200, 201} // frame value t*100+ch per (offset, channel)
	if len(in) != len(wantIn)*4 {
		t.Fatalf("input length = %d, want %d", len(in), len(wantIn)*4)
	}
	for i, w := range wantIn {
		if in[i*4] != w {
			t.Fatalf("input block %d = %v, want %v", i, in[i*4], w)
		}
	}
	if len(tg) != 4 || tg[0] != 800 {
		t.Fatalf("target = %v, want all 800", tg)
	}
}

func TestWindowDataset_OffsetsStayInBounds(t *testing.T) {
	b := openFixture(t, 30)
	past := []int{-2, -1, 0}
	const lead = 6

	chunks := catalog.Chunks{10, 10, 10}
	start, end, err := chunks.Resolve([2]int{1979, 1981}, past, lead)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	ds, err := NewWindowDataset("train", b, ViewConfig{
		Vars:       testVars,
		TargetVars: testTargets,
		LeadTime:   lead,
		Start:      start,
		End:        end,
		PastTimes:  past,
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}
	for i := 0; i < ds.Len(); i++ {
		if _, _, err := ds.Example(i); err != nil {
			t.Fatalf("Example(%d) failed: %v", i, err)
		}
	}
}

func TestWindowDataset_RejectsBadWindows(t *testing.T) {
	b := openFixture(t, 20)

	cases := []struct {
		name string
		cfg  ViewConfig
	}{
		{"empty window", ViewConfig{Vars: testVars, TargetVars: testTargets, Start: 5, End: 5}},
		{"runway underflow", ViewConfig{Vars: testVars, TargetVars: testTargets, Start: 1, End: 5, PastTimes: []int{-2}}},
		{"lead overflow", ViewConfig{Vars: testVars, TargetVars: testTargets, Start: 5, End: 20, LeadTime: 3}},
		{"positive past", ViewConfig{Vars: testVars, TargetVars: testTargets, Start: 5, End: 10, PastTimes: []int{2}}},
		{"unknown channel", ViewConfig{Vars: catalog.Catalog{{Name: "q", Levels: []int{700}}}, TargetVars: testTargets, Start: 5, End: 10}},
	}
	for _, tc := range cases {
		if _, err := NewWindowDataset("x", b, tc.cfg); err == nil {
			t.Errorf("%s: expected error, got none", tc.name)
		}
	}
}

func TestWindowDataset_PastTimesOwnAxis(t *testing.T) {
	b := openFixture(t, 20)
	ds, err := NewWindowDataset("train", b, ViewConfig{
		Vars:             testVars,
		TargetVars:       testTargets,
		Start:            3,
		End:              18,
		PastTimes:        []int{-3, -1},
		PastTimesOwnAxis: true,
		Seed:             1,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}
	want := []int{3, 2, 2, 2} // past axis, channels, lat, lon
	got := ds.InputShape()
	if len(got) != len(want) {
		t.Fatalf("InputShape = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("InputShape = %v, want %v", got, want)
		}
	}
}

func TestWindowDataset_YieldAndRestart(t *testing.T) {
	b := openFixture(t, 20)
	ds, err := NewWindowDataset("validation", b, ViewConfig{
		Vars:       testVars,
		TargetVars: testTargets,
		Start:      0,
		End:        10,
		BatchSize:  4,
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}

	var batches, samples int
	for {
		_, ins, labs, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Yield failed: %v", err)
		}
		if len(ins) != 1 || len(labs) != 1 {
			t.Fatalf("Yield returned %d inputs, %d labels; want 1 and 1", len(ins), len(labs))
		}
		bs := ins[0].Shape().Dimensions[0]
		if labs[0].Shape().Dimensions[0] != bs {
			t.Fatalf("input batch %d != label batch %d", bs, labs[0].Shape().Dimensions[0])
		}
		batches++
		samples += bs
	}
	if batches != 3 || samples != 10 {
		t.Fatalf("epoch yielded %d batches, %d samples; want 3 and 10", batches, samples)
	}

	if err := ds.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if _, _, _, err := ds.Yield(); err != nil {
		t.Fatalf("Yield after Restart failed: %v", err)
	}
}

func TestWindowDataset_ChronologicalOrder(t *testing.T) {
	b := openFixture(t, 20)
	ds, err := NewWindowDataset("test", b, ViewConfig{
		Vars:       testVars,
		TargetVars: testTargets,
		Start:      4,
		End:        12,
		BatchSize:  8,
		Seed:       1,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}

	// A non-randomized view serves window indices chronologically, and
	// sample i leads with z_500 at its reference timestep.
	for i, idx := range ds.order {
		if idx != i {
			t.Fatalf("order[%d] = %d, want chronological", i, idx)
		}
	}
	in, _, err := ds.Example(0)
	if err != nil {
		t.Fatalf("Example(0) failed: %v", err)
	}
	if in[0] != 400 {
		t.Fatalf("first sample leads with %v, want 400", in[0])
	}
}

func TestWindowDataset_RandomizedOrderIsPermutation(t *testing.T) {
	b := openFixture(t, 20)
	ds, err := NewWindowDataset("train", b, ViewConfig{
		Vars:           testVars,
		TargetVars:     testTargets,
		Start:          0,
		End:            16,
		RandomizeOrder: true,
		BatchSize:      16,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("NewWindowDataset failed: %v", err)
	}

	seen := make(map[int]bool, 16)
	for _, idx := range ds.order {
		if idx < 0 || idx >= 16 || seen[idx] {
			t.Fatalf("shuffled order %v is not a permutation of [0, 16)", ds.order)
		}
		seen[idx] = true
	}
	if len(seen) != 16 {
		t.Fatalf("shuffled order %v is not a permutation of [0, 16)", ds.order)
	}

	first := append([]int(nil), ds.order...)
	if err := ds.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	same := true
	for i := range first {
		if ds.order[i] != first[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("Restart did not reshuffle the randomized view")
	}
}
