package catalog

import (
	"fmt"
	"sort"
	"time"
)

// MergedAxis is the union of all catalog variables' time coordinates, in
// chronological order. It is built once per load, used to derive per-year
// chunk sizes, and then discarded; the datasets it helps construct never
// retain it.
type MergedAxis struct {
	// Times is the merged, sorted, de-duplicated time axis.
	Times []time.Time

	// filled counts, per variable, how many merged timestamps that variable
	// has no value for. Those samples read as zero in the backing array.
	filled map[string]int
}

// mergeVarTimes unions the per-variable time coordinates into one axis.
// order fixes the iteration order so filled-counts reporting is stable.
func mergeVarTimes(order []string, per map[string][]time.Time) *MergedAxis {
	set := make(map[int64]time.Time)
	for _, ts := range per {
		for _, t := range ts {
			set[t.Unix()] = t.UTC()
		}
	}

	times := make([]time.Time, 0, len(set))
	for _, t := range set {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	filled := make(map[string]int, len(order))
	for _, name := range order {
		have := make(map[int64]bool, len(per[name]))
		for _, t := range per[name] {
			have[t.Unix()] = true
		}
		n := 0
		for _, t := range times {
			if !have[t.Unix()] {
				n++
			}
		}
		filled[name] = n
	}

	return &MergedAxis{Times: times, filled: filled}
}

// Len returns the number of timesteps on the merged axis.
func (a *MergedAxis) Len() int { return len(a.Times) }

// FilledFor returns how many merged timestamps the named variable is
// zero-filled at.
func (a *MergedAxis) FilledFor(name string) int { return a.filled[name] }

// YearChunks counts the timesteps stored for each calendar year, ordered by
// year and indexed by year - EpochYear. The axis must start in the epoch
// year and cover years contiguously: the resolver's cumulative sums index
// chunks by that fixed offset, so a gap or a late start would silently
// misalign every window.
func (a *MergedAxis) YearChunks() (Chunks, error) {
	if len(a.Times) == 0 {
		return nil, fmt.Errorf("merged time axis is empty")
	}
	first := a.Times[0].Year()
	if first != EpochYear {
		return nil, fmt.Errorf("merged time axis starts in %d; chunk indexing is anchored at %d", first, EpochYear)
	}
	last := a.Times[len(a.Times)-1].Year()

	chunks := make(Chunks, last-first+1)
	for _, t := range a.Times {
		chunks[t.Year()-EpochYear]++
	}
	for i, n := range chunks {
		if n == 0 {
			return nil, fmt.Errorf("merged time axis has no timesteps for year %d", EpochYear+i)
		}
	}
	return chunks, nil
}
