package datasets

import (
	"testing"

	"github.com/weatherml/gridcast/catalog"
)

func TestBuild_SharesOneBacking(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 30) // ten timesteps per year, 1979-1981

	chunks := catalog.Chunks{10, 10, 10}
	cfg := LoadConfig{
		Vars:            testVars,
		TargetVars:      testTargets,
		LeadTime:        2,
		TrainYears:      [2]int{1979, 1979},
		ValidationYears: [2]int{1980, 1980},
		TestYears:       [2]int{1981, 1981},
		DataDir:         dir,
		MapMode:         MapRead,
		PastTimes:       []int{-1},
		BatchSize:       4,
		Seed:            3,
	}

	train, validation, test, err := Build(cfg, chunks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer train.Backing().Close()

	// Exactly one physical open: all three views alias the same handle.
	if train.Backing() != validation.Backing() || train.Backing() != test.Backing() {
		t.Fatal("views do not share one backing handle")
	}

	// Windows are disjoint and in year order, shifted by runway and lead.
	wantWindows := [][2]int{{1, 8}, {11, 18}, {21, 28}}
	for i, ds := range []*WindowDataset{train, validation, test} {
		if got := [2]int{ds.cfg.Start, ds.cfg.End}; got != wantWindows[i] {
			t.Fatalf("%s window = %v, want %v", ds.Name(), got, wantWindows[i])
		}
	}

	if !train.cfg.RandomizeOrder {
		t.Error("train view should be randomized")
	}
	if validation.cfg.RandomizeOrder || test.cfg.RandomizeOrder {
		t.Error("validation/test views should be chronological")
	}
}

func TestBuild_YearOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 30)

	cfg := LoadConfig{
		Vars:            testVars,
		TargetVars:      testTargets,
		TrainYears:      [2]int{1979, 1979},
		ValidationYears: [2]int{1980, 1980},
		TestYears:       [2]int{1982, 1982}, // chunks only cover through 1981
		DataDir:         dir,
		MapMode:         MapRead,
	}
	if _, _, _, err := Build(cfg, catalog.Chunks{10, 10, 10}); err == nil {
		t.Fatal("expected year-out-of-range error")
	}
}
