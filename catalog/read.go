package catalog

import (
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// FileFrames reads one yearly NetCDF file of a catalog variable and returns
// its time axis plus the gridded values, flattened row-major to lat*lon per
// frame. frames is indexed [timestep][level position]; surface variables get
// a single level position. The grid dimensions come back alongside so
// callers can check consistency across files.
func FileFrames(path string, v VarSpec) (ts []time.Time, frames [][][]float32, lat, lon int, err error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	defer nc.Close()

	hours, err := coordInts(nc, "time")
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("failed to read time axis of %s: %w", path, err)
	}
	ts = make([]time.Time, len(hours))
	for i, h := range hours {
		ts[i] = time.Unix(h*3600+unixSecs1900, 0).UTC()
	}

	vg, err := nc.GetVarGetter(v.Name)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("variable %q not found in %s: %w", v.Name, path, err)
	}
	vals, err := vg.Values()
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("failed to read variable %q from %s: %w", v.Name, path, err)
	}

	switch data := vals.(type) {
	case [][][]float32:
		frames, lat, lon, err = surfaceFrames32(v, data)
	case [][][]float64:
		frames, lat, lon, err = surfaceFrames32(v, widen3(data))
	case [][][][]float32:
		frames, lat, lon, err = levelFrames32(nc, v, data)
	case [][][][]float64:
		frames, lat, lon, err = levelFrames32(nc, v, widen4(data))
	default:
		err = fmt.Errorf("unsupported data type %T for variable %q in %s", vals, v.Name, path)
	}
	if err != nil {
		return nil, nil, 0, 0, err
	}
	if len(frames) != len(ts) {
		return nil, nil, 0, 0, fmt.Errorf("variable %q in %s has %d frames for %d timesteps",
			v.Name, path, len(frames), len(ts))
	}
	return ts, frames, lat, lon, nil
}

func surfaceFrames32(v VarSpec, data [][][]float32) ([][][]float32, int, int, error) {
	if len(v.Levels) > 0 {
		return nil, 0, 0, fmt.Errorf("variable %q has no level axis but levels %v were requested", v.Name, v.Levels)
	}
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, 0, 0, fmt.Errorf("variable %q is empty", v.Name)
	}
	lat, lon := len(data[0]), len(data[0][0])
	frames := make([][][]float32, len(data))
	for t, grid := range data {
		frames[t] = [][]float32{flattenGrid(grid)}
	}
	return frames, lat, lon, nil
}

func levelFrames32(nc api.Group, v VarSpec, data [][][][]float32) ([][][]float32, int, int, error) {
	if len(v.Levels) == 0 {
		return nil, 0, 0, fmt.Errorf("variable %q has a level axis, explicit levels are required", v.Name)
	}
	if len(data) == 0 || len(data[0]) == 0 || len(data[0][0]) == 0 {
		return nil, 0, 0, fmt.Errorf("variable %q is empty", v.Name)
	}

	avail, err := coordInts(nc, "level")
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read level axis of variable %q: %w", v.Name, err)
	}
	positions := make([]int, len(v.Levels))
	for i, want := range v.Levels {
		positions[i] = -1
		for j, have := range avail {
			if int(have) == want {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return nil, 0, 0, fmt.Errorf("variable %q has no level %d (available: %v)", v.Name, want, avail)
		}
	}

	lat, lon := len(data[0][0]), len(data[0][0][0])
	frames := make([][][]float32, len(data))
	for t, cube := range data {
		frames[t] = make([][]float32, len(positions))
		for i, pos := range positions {
			if pos >= len(cube) {
				return nil, 0, 0, fmt.Errorf("variable %q timestep %d has %d levels, want index %d", v.Name, t, len(cube), pos)
			}
			frames[t][i] = flattenGrid(cube[pos])
		}
	}
	return frames, lat, lon, nil
}

func flattenGrid(grid [][]float32) []float32 {
	out := make([]float32, 0, len(grid)*len(grid[0]))
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}

func widen3(data [][][]float64) [][][]float32 {
	out := make([][][]float32, len(data))
	for t, grid := range data {
		out[t] = make([][]float32, len(grid))
		for r, row := range grid {
			conv := make([]float32, len(row))
			for c, x := range row {
				conv[c] = float32(x)
			}
			out[t][r] = conv
		}
	}
	return out
}

func widen4(data [][][][]float64) [][][][]float32 {
	out := make([][][][]float32, len(data))
	for t, cube := range data {
		out[t] = widen3(cube)
	}
	return out
}
