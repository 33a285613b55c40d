// Command prep converts a directory of yearly reanalysis NetCDF files into
// the flattened, per-channel z-scored backing array the datasets package
// serves windows from, plus the channel-name sidecar file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/weatherml/gridcast/catalog"
	"github.com/weatherml/gridcast/datasets"

	"gonum.org/v1/gonum/stat"
)

// prepConfig is the optional JSON configuration. Explicit CLI flags take
// precedence over JSON values.
type prepConfig struct {
	DataDir string           `json:"data_dir"`
	OutDir  string           `json:"out_dir"`
	Grid    string           `json:"grid"`
	Vars    map[string][]int `json:"vars"`
}

func main() {
	dataDir := flag.String("data", "data", "root directory holding one subdirectory of yearly .nc files per variable")
	outDir := flag.String("out", "output", "output directory for the backing array and level names")
	grid := flag.String("grid", datasets.DefaultGridPrefix, "grid prefix used in the output file names")
	varsFlag := flag.String("vars", "z:500,t:850,tisr", "comma-separated variables, each var or var:level|level|...")
	configPath := flag.String("config", "", "optional JSON configuration file; explicit flags override it")
	verbose := flag.Bool("verbose", false, "log per-variable scan and z-scoring details")
	flag.Parse()

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		// JSON fills in flags the user left at their defaults.
		if cfg.DataDir != "" && *dataDir == "data" {
			*dataDir = cfg.DataDir
		}
		if cfg.OutDir != "" && *outDir == "output" {
			*outDir = cfg.OutDir
		}
		if cfg.Grid != "" && *grid == datasets.DefaultGridPrefix {
			*grid = cfg.Grid
		}
		if len(cfg.Vars) > 0 && *varsFlag == "z:500,t:850,tisr" {
			*varsFlag = formatVars(cfg.Vars)
		}
		log.Printf("Loaded configuration from %s", *configPath)
	}

	cat, err := parseVars(*varsFlag)
	if err != nil {
		log.Fatalf("invalid -vars: %v", err)
	}
	log.Printf("Preparing %d channels (%s) from %s", cat.NumChannels(), strings.Join(cat.ChannelNames(), ", "), *dataDir)

	axis, err := catalog.Scan(*dataDir, cat, *verbose)
	if err != nil {
		log.Fatalf("failed to scan %s: %v", *dataDir, err)
	}
	// Fail before assembly if the axis would not satisfy the yearly chunk
	// contract training relies on.
	chunks, err := axis.YearChunks()
	if err != nil {
		log.Fatalf("time axis unusable: %v", err)
	}
	log.Printf("Merged axis: %d timesteps, %d to %d", axis.Len(), catalog.EpochYear, chunks.LastYear())

	data, shape, err := assemble(*dataDir, cat, axis)
	if err != nil {
		log.Fatalf("failed to assemble backing array: %v", err)
	}
	zscore(data, shape, cat.ChannelNames(), *verbose)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output dir %s: %v", *outDir, err)
	}
	npyPath := filepath.Join(*outDir, *grid+datasets.ZScoredSuffix)
	f, err := os.Create(npyPath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", npyPath, err)
	}
	if err := datasets.WriteNPY(f, shape, data); err != nil {
		f.Close()
		log.Fatalf("failed to write %s: %v", npyPath, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("failed to close %s: %v", npyPath, err)
	}

	namesPath := filepath.Join(*outDir, *grid+datasets.LevelNamesSuffix)
	if err := datasets.WriteLevelNames(namesPath, cat.ChannelNames()); err != nil {
		log.Fatalf("failed to write %s: %v", namesPath, err)
	}
	log.Printf("Wrote %s (shape %v) and %s", npyPath, shape, namesPath)
}

// assemble reads every variable's files and places each frame at its merged
// axis row, leaving zeros where a variable has no sample for a timestep.
func assemble(dir string, cat catalog.Catalog, axis *catalog.MergedAxis) ([]float32, []int, error) {
	rowOf := make(map[int64]int, axis.Len())
	for i, ts := range axis.Times {
		rowOf[ts.Unix()] = i
	}

	var (
		data     []float32
		lat, lon int
		ch       int
	)
	for _, v := range cat {
		files, err := filepath.Glob(filepath.Join(dir, v.Name, "*.nc"))
		if err != nil {
			return nil, nil, err
		}
		sort.Strings(files)
		for _, path := range files {
			ts, frames, flat, flon, err := catalog.FileFrames(path, v)
			if err != nil {
				return nil, nil, err
			}
			if data == nil {
				lat, lon = flat, flon
				data = make([]float32, axis.Len()*cat.NumChannels()*lat*lon)
			} else if flat != lat || flon != lon {
				return nil, nil, fmt.Errorf("%s has grid %dx%d, want %dx%d", path, flat, flon, lat, lon)
			}
			for t, levels := range frames {
				row, ok := rowOf[ts[t].Unix()]
				if !ok {
					return nil, nil, fmt.Errorf("%s has timestep %v outside the merged axis", path, ts[t])
				}
				for li, frame := range levels {
					off := ((row*cat.NumChannels() + ch + li) * lat) * lon
					copy(data[off:off+lat*lon], frame)
				}
			}
		}
		if len(v.Levels) > 0 {
			ch += len(v.Levels)
		} else {
			ch++
		}
	}
	if data == nil {
		return nil, nil, fmt.Errorf("no data assembled")
	}
	return data, []int{axis.Len(), cat.NumChannels(), lat, lon}, nil
}

// zscore standardizes each channel in place over all timesteps and grid
// points. A constant channel is left untouched rather than divided by a
// zero deviation.
func zscore(data []float32, shape []int, names []string, verbose bool) {
	steps, channels := shape[0], shape[1]
	cells := shape[2] * shape[3]
	vals := make([]float64, steps*cells)
	for c := 0; c < channels; c++ {
		for t := 0; t < steps; t++ {
			off := (t*channels + c) * cells
			for i := 0; i < cells; i++ {
				vals[t*cells+i] = float64(data[off+i])
			}
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if std == 0 {
			log.Printf("warning: channel %s is constant (%f), leaving unscaled", names[c], mean)
			continue
		}
		for t := 0; t < steps; t++ {
			off := (t*channels + c) * cells
			for i := 0; i < cells; i++ {
				data[off+i] = float32((float64(data[off+i]) - mean) / std)
			}
		}
		if verbose {
			log.Printf("prep: %s: mean=%f std=%f", names[c], mean, std)
		}
	}
}

// parseVars turns "z:500|850,t:850,tisr" into a catalog.
func parseVars(s string) (catalog.Catalog, error) {
	var cat catalog.Catalog
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, levelsStr, hasLevels := strings.Cut(entry, ":")
		spec := catalog.VarSpec{Name: strings.TrimSpace(name)}
		if hasLevels {
			for _, l := range strings.Split(levelsStr, "|") {
				lv, err := strconv.Atoi(strings.TrimSpace(l))
				if err != nil {
					return nil, fmt.Errorf("bad level %q for variable %q: %w", l, name, err)
				}
				spec.Levels = append(spec.Levels, lv)
			}
		}
		cat = append(cat, spec)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// formatVars renders a JSON vars map back into the -vars flag syntax, in
// sorted variable order so runs are reproducible.
func formatVars(vars map[string][]int) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]string, 0, len(names))
	for _, name := range names {
		levels := vars[name]
		if len(levels) == 0 {
			entries = append(entries, name)
			continue
		}
		parts := make([]string, len(levels))
		for i, l := range levels {
			parts[i] = strconv.Itoa(l)
		}
		entries = append(entries, name+":"+strings.Join(parts, "|"))
	}
	return strings.Join(entries, ",")
}

func loadConfig(path string) (*prepConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg prepConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
