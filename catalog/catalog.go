// Package catalog describes the set of reanalysis variables an experiment
// reads and translates requested calendar-year ranges into offsets on the
// merged, chronologically flattened time axis shared by all variables.
//
// The catalog is an ordered list of variable specifications. Each variable's
// yearly NetCDF files are discovered on disk and their time coordinates are
// merged into one axis; variables that have no value at a merged timestamp
// (incoming solar radiation at night, for example) are treated as zero-filled
// rather than missing. Per-calendar-year chunk sizes derived from that axis
// drive the train/validation/test window resolution in the datasets package.
package catalog

import "fmt"

// VarSpec names one reanalysis variable and the vertical levels wanted from
// it. A nil or empty Levels means the variable is a single surface field.
type VarSpec struct {
	// Name is the variable short name and also the subdirectory the
	// variable's yearly NetCDF files live in (e.g. "z", "t", "tisr").
	Name string

	// Levels are the pressure levels (hPa) to extract, in order. Each level
	// becomes its own channel named "<var>_<level>".
	Levels []int
}

// Catalog is an ordered mapping from variable name to specification. Order
// matters: it fixes the channel order of the flattened backing array.
type Catalog []VarSpec

// Names returns the variable names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = v.Name
	}
	return names
}

// ChannelNames expands the catalog into per-channel names: one entry per
// (variable, level) pair for leveled variables, or the bare variable name
// for surface fields.
func (c Catalog) ChannelNames() []string {
	var names []string
	for _, v := range c {
		if len(v.Levels) == 0 {
			names = append(names, v.Name)
			continue
		}
		for _, l := range v.Levels {
			names = append(names, fmt.Sprintf("%s_%d", v.Name, l))
		}
	}
	return names
}

// NumChannels returns the number of channels the catalog expands to.
func (c Catalog) NumChannels() int {
	n := 0
	for _, v := range c {
		if len(v.Levels) == 0 {
			n++
		} else {
			n += len(v.Levels)
		}
	}
	return n
}

// Validate checks the catalog is usable: non-empty, unique variable names,
// positive levels.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]bool, len(c))
	for _, v := range c {
		if v.Name == "" {
			return fmt.Errorf("catalog contains a variable with an empty name")
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variable %q in catalog", v.Name)
		}
		seen[v.Name] = true
		for _, l := range v.Levels {
			if l <= 0 {
				return fmt.Errorf("variable %q has non-positive level %d", v.Name, l)
			}
		}
	}
	return nil
}
