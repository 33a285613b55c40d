package catalog

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Reanalysis NetCDF files store time as hours since 1900-01-01 00:00:00 UTC.
// TZ=UTC date --date="1900-01-01 00:00:00" +%s
const unixSecs1900 = -2208988800

// Scan discovers every catalog variable's yearly NetCDF files under
// dir/<var>/*.nc, reads their time coordinates, and merges them into one
// chronological axis. A variable with no matching files aborts the scan, as
// does any NetCDF read failure; there is no partial recovery.
//
// When verbose is set, per-variable file and fill counts are logged.
func Scan(dir string, cat Catalog, verbose bool) (*MergedAxis, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	per := make(map[string][]time.Time, len(cat))
	for _, v := range cat {
		pattern := filepath.Join(dir, v.Name, "*.nc")
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no NetCDF files found matching pattern: %s", pattern)
		}
		sort.Strings(files)

		var ts []time.Time
		for _, f := range files {
			ft, err := readTimes(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read time axis of %s: %w", f, err)
			}
			ts = append(ts, ft...)
		}
		per[v.Name] = ts
		if verbose {
			log.Printf("catalog: %s: %d files, %d timesteps", v.Name, len(files), len(ts))
		}
	}

	axis := mergeVarTimes(cat.Names(), per)
	if verbose {
		for _, name := range cat.Names() {
			if n := axis.FilledFor(name); n > 0 {
				log.Printf("catalog: %s: %d merged timesteps zero-filled", name, n)
			}
		}
		log.Printf("catalog: merged axis %v to %v (%d timesteps)",
			axis.Times[0], axis.Times[len(axis.Times)-1], axis.Len())
	}
	return axis, nil
}

// readTimes extracts the time coordinate of one NetCDF file as UTC
// timestamps.
func readTimes(path string) ([]time.Time, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	hours, err := coordInts(nc, "time")
	if err != nil {
		return nil, err
	}

	ts := make([]time.Time, len(hours))
	for i, h := range hours {
		ts[i] = time.Unix(h*3600+unixSecs1900, 0).UTC()
	}
	return ts, nil
}

// coordInts reads a coordinate variable and widens it to int64. Archives
// vary in how coordinates were written, so the common integer and float
// encodings are all accepted.
func coordInts(nc api.Group, name string) ([]int64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, err
	}

	switch v := vals.(type) {
	case []int32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []int64:
		return v, nil
	case []float32:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []float64:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported time coordinate type %T in variable %q", vals, name)
	}
}
