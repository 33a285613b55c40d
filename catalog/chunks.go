package catalog

import "fmt"

// EpochYear anchors the chunk index: chunk i holds the timestep count for
// calendar year EpochYear+i. The reanalysis archive this module reads starts
// in 1979, and all offset arithmetic is relative to that year.
const EpochYear = 1979

// Chunks holds one timestep count per calendar year, ordered by year from
// EpochYear.
type Chunks []int

// Total returns the length of the merged time axis the chunks describe.
func (c Chunks) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// LastYear returns the last calendar year the chunk index covers.
func (c Chunks) LastYear() int { return EpochYear + len(c) - 1 }

// Resolve translates a requested two-element year range into a single
// [start, end) offset pair on the merged time axis for one dataset split.
//
// The boundary arithmetic is deliberately asymmetric: start sums the chunks
// of all years strictly before years[0], while end sums through years[1]'s
// own chunk (boundary index offset by one for the end element). Two safety
// margins are then applied so that every sample i drawn from [start, end)
// can reference i+p for each past offset p and i+lead without leaving the
// axis: start moves forward by the deepest past offset, and end moves back
// by the lead time.
//
// past offsets must be non-positive (they reach backwards from the sample's
// reference time) and lead must be non-negative. Years outside the indexed
// range are rejected rather than read out of bounds.
func (c Chunks) Resolve(years [2]int, past []int, lead int) (start, end int, err error) {
	if lead < 0 {
		return 0, 0, fmt.Errorf("lead time must be non-negative, got %d", lead)
	}
	for _, p := range past {
		if p > 0 {
			return 0, 0, fmt.Errorf("past-time offsets must be non-positive, got %d", p)
		}
	}
	if years[0] > years[1] {
		return 0, 0, fmt.Errorf("year range [%d, %d] is reversed", years[0], years[1])
	}

	for i, yr := range years {
		if yr < EpochYear {
			return 0, 0, fmt.Errorf("year %d is before epoch %d", yr, EpochYear)
		}
		// boundary index used in the cumulative sum below
		if b := yr - EpochYear + i; b > len(c) {
			return 0, 0, fmt.Errorf("year %d is beyond the indexed range (chunks end at %d)", yr, c.LastYear())
		}
	}

	start = sum(c[:years[0]-EpochYear])
	end = sum(c[:years[1]-EpochYear+1])

	// Reserve the runway for the deepest historical frame, then pull the end
	// back so the last sample's target stays on the axis.
	runway := 0
	for _, p := range past {
		if p < runway {
			runway = p
		}
	}
	start -= runway
	end -= lead

	return start, end, nil
}

func sum(xs []int) int {
	n := 0
	for _, v := range xs {
		n += v
	}
	return n
}
