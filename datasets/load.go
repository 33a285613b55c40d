package datasets

import (
	"fmt"
	"log"

	"github.com/weatherml/gridcast/catalog"
)

// LoadConfig is the configuration surface of the dataset factory.
type LoadConfig struct {
	// Vars and TargetVars are the input and target variable catalogs.
	Vars       catalog.Catalog
	TargetVars catalog.Catalog

	// LeadTime is the forecast horizon in timesteps.
	LeadTime int

	// Year ranges for the three splits, inclusive [start, end] pairs.
	TrainYears      [2]int
	ValidationYears [2]int
	TestYears       [2]int

	// DataDir holds the per-variable NetCDF subdirectories and the
	// flattened archive files.
	DataDir string

	// GridPrefix selects the archive resolution; DefaultGridPrefix when
	// empty.
	GridPrefix string

	// MapMode selects how the backing array is accessed. MapNone fully
	// materializes it.
	MapMode MapMode

	// PastTimes are optional non-positive historical input offsets.
	PastTimes []int

	// PastTimesOwnAxis serves past frames on their own axis.
	PastTimesOwnAxis bool

	// BatchSize and Seed are forwarded to the views.
	BatchSize int
	Seed      int64

	Verbose bool
}

// Load scans the variable catalog's NetCDF files to derive per-year chunk
// sizes, resolves the three year ranges into windows on the merged axis, and
// constructs the train, validation and test views. The merged axis is
// discarded once the offsets are computed; only the backing array handle is
// retained by the views.
func Load(cfg LoadConfig) (train, validation, test *WindowDataset, err error) {
	axis, err := catalog.Scan(cfg.DataDir, cfg.Vars, cfg.Verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to scan variable catalog: %w", err)
	}
	chunks, err := axis.YearChunks()
	if err != nil {
		return nil, nil, nil, err
	}
	return Build(cfg, chunks)
}

// Build constructs the three views from already-derived year chunks. The
// backing array and level-name metadata are opened exactly once: the train
// view's open is reused by validation and test.
func Build(cfg LoadConfig, chunks catalog.Chunks) (train, validation, test *WindowDataset, err error) {
	backing, err := OpenBacking(cfg.DataDir, cfg.GridPrefix, cfg.MapMode, cfg.Verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open backing array: %w", err)
	}
	defer func() {
		if err != nil {
			backing.Close()
		}
	}()

	if cfg.Verbose {
		log.Printf("load: %d year chunks (through %d), axis length %d",
			len(chunks), chunks.LastYear(), chunks.Total())
	}

	view := func(name string, years [2]int, randomize bool) (*WindowDataset, error) {
		start, end, err := chunks.Resolve(years, cfg.PastTimes, cfg.LeadTime)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s years %v: %w", name, years, err)
		}
		return NewWindowDataset(name, backing, ViewConfig{
			Vars:             cfg.Vars,
			TargetVars:       cfg.TargetVars,
			LeadTime:         cfg.LeadTime,
			Start:            start,
			End:              end,
			PastTimes:        cfg.PastTimes,
			PastTimesOwnAxis: cfg.PastTimesOwnAxis,
			RandomizeOrder:   randomize,
			BatchSize:        cfg.BatchSize,
			Seed:             cfg.Seed,
			Verbose:          cfg.Verbose,
		})
	}

	if train, err = view("train", cfg.TrainYears, true); err != nil {
		return nil, nil, nil, err
	}
	if validation, err = view("validation", cfg.ValidationYears, false); err != nil {
		return nil, nil, nil, err
	}
	if test, err = view("test", cfg.TestYears, false); err != nil {
		return nil, nil, nil, err
	}
	return train, validation, test, nil
}
