// Command inspect scans a reanalysis archive, reports the merged time axis
// and its yearly chunk structure, resolves the train/validation/test
// windows that a training run would use, and optionally renders the chunk
// sizes as a bar chart.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weatherml/gridcast/catalog"
	"github.com/weatherml/gridcast/device"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	dataDir := flag.String("data", "data", "root directory holding one subdirectory of yearly .nc files per variable")
	varsFlag := flag.String("vars", "z:500,t:850,tisr", "comma-separated variables, each var or var:level|level|...")
	trainYears := flag.String("train", "1979-2015", "training year range (inclusive)")
	valYears := flag.String("val", "2016-2016", "validation year range (inclusive)")
	testYears := flag.String("test", "2017-2018", "test year range (inclusive)")
	leadTime := flag.Int("lead-time", 72, "forecast lead time in timesteps")
	pastFlag := flag.String("past-times", "", "comma-separated non-positive history offsets, e.g. '-2,-1'")
	plotDir := flag.String("plot", "", "if set, write a chunk-size bar chart into this directory")
	verbose := flag.Bool("verbose", false, "log per-variable scan details")
	flag.Parse()

	dev := device.Default()
	log.Printf("Compute device: %s (%s)", dev.Kind, dev.Name)

	cat, err := parseVars(*varsFlag)
	if err != nil {
		log.Fatalf("invalid -vars: %v", err)
	}
	past, err := parsePastTimes(*pastFlag)
	if err != nil {
		log.Fatalf("invalid -past-times: %v", err)
	}

	axis, err := catalog.Scan(*dataDir, cat, *verbose)
	if err != nil {
		log.Fatalf("failed to scan %s: %v", *dataDir, err)
	}
	chunks, err := axis.YearChunks()
	if err != nil {
		log.Fatalf("time axis unusable: %v", err)
	}

	fmt.Printf("Channels (%d): %s\n", cat.NumChannels(), strings.Join(cat.ChannelNames(), ", "))
	fmt.Printf("Merged axis: %d timesteps, %v to %v\n",
		axis.Len(), axis.Times[0], axis.Times[len(axis.Times)-1])
	for _, v := range cat {
		if n := axis.FilledFor(v.Name); n > 0 {
			fmt.Printf("  %s: %d timesteps zero-filled\n", v.Name, n)
		}
	}
	fmt.Printf("Yearly chunks (%d-%d):\n", catalog.EpochYear, chunks.LastYear())
	for i, n := range chunks {
		fmt.Printf("  %d: %d timesteps\n", catalog.EpochYear+i, n)
	}

	for _, epoch := range []struct {
		name  string
		years string
	}{
		{"train", *trainYears},
		{"validation", *valYears},
		{"test", *testYears},
	} {
		lo, hi, err := parseYearRange(epoch.years)
		if err != nil {
			log.Fatalf("invalid -%s: %v", epoch.name, err)
		}
		start, end, err := chunks.Resolve([2]int{lo, hi}, past, *leadTime)
		if err != nil {
			log.Fatalf("failed to resolve %s years %s: %v", epoch.name, epoch.years, err)
		}
		fmt.Printf("%s %s: window [%d, %d) (%d samples)\n", epoch.name, epoch.years, start, end, end-start)
	}

	if *plotDir != "" {
		if err := plotChunks(*plotDir, chunks); err != nil {
			log.Fatalf("failed to plot chunk sizes: %v", err)
		}
		log.Printf("Chunk-size chart written to %s", *plotDir)
	}
}

// plotChunks renders the per-year timestep counts as a bar chart, which
// makes short or partially-filled years stand out immediately.
func plotChunks(outDir string, chunks catalog.Chunks) error {
	p := plot.New()
	p.Title.Text = "Timesteps per year"
	p.Y.Label.Text = "timesteps"

	vals := make(plotter.Values, len(chunks))
	labels := make([]string, len(chunks))
	for i, n := range chunks {
		vals[i] = float64(n)
		labels[i] = strconv.Itoa(catalog.EpochYear + i)
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = -0.9

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(outDir, "chunks.png"))
}

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

func parsePastTimes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var past []int
	for _, tok := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		if v > 0 {
			return nil, fmt.Errorf("history offset %d is positive", v)
		}
		past = append(past, v)
	}
	return past, nil
}

// parseYearRange accepts "2016" or "1979-2015".
func parseYearRange(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	loStr, hiStr, isRange := strings.Cut(s, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(loStr))
	if err != nil {
		return 0, 0, fmt.Errorf("bad year %q: %w", loStr, err)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(hiStr))
	if err != nil {
		return 0, 0, fmt.Errorf("bad year %q: %w", hiStr, err)
	}
	return lo, hi, nil
}
