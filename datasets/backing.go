// Package datasets loads the flattened, z-scored reanalysis archive and
// presents windowed train/validation/test views of it to gomlx training
// loops.
//
// The archive is a single C-ordered float32 .npy array shaped
// [time, channel, lat, lon], accompanied by a level-names file listing the
// channel order. All three views of one load share a single Backing: the
// train view performs the only physical open, and validation/test reuse its
// handles.
package datasets

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Filename conventions under the data directory, inherited from the
// preprocessing step (see cmd/prep).
const (
	ZScoredSuffix    = "_all_zscored.npy"
	LevelNamesSuffix = "_all_level_names.txt"

	// DefaultGridPrefix names the 5.625 degree regridding of the archive.
	DefaultGridPrefix = "5_625deg"
)

// MapMode selects how the backing array file is accessed.
type MapMode int

const (
	// MapNone materializes the whole array into process memory. Legal, but
	// logged loudly: the archive is tens of gigabytes at full resolution.
	MapNone MapMode = iota

	// MapRead maps the file read-only and shared.
	MapRead

	// MapCopy maps the file copy-on-write (private).
	MapCopy
)

func (m MapMode) String() string {
	switch m {
	case MapNone:
		return "none"
	case MapRead:
		return "r"
	case MapCopy:
		return "c"
	default:
		return fmt.Sprintf("MapMode(%d)", int(m))
	}
}

// ParseMapMode maps the conventional mode strings onto MapMode values. The
// empty string and "none" both mean full materialization.
func ParseMapMode(s string) (MapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return MapNone, nil
	case "r":
		return MapRead, nil
	case "c":
		return MapCopy, nil
	default:
		return 0, fmt.Errorf("unknown map mode %q (want \"r\", \"c\" or \"none\")", s)
	}
}

// Backing is the shared, read-only view of the flattened archive plus its
// level-name metadata. It is opened exactly once per Load call and handed to
// all three dataset views.
type Backing struct {
	// Data is the flattened float32 array, [time][channel][lat][lon].
	Data []float32

	// Shape is time, channel, lat, lon.
	Shape [4]int

	// LevelNames holds one name per channel, in channel order.
	LevelNames []string

	// raw is the whole mapped file when a mmap mode was used; nil when the
	// array was materialized in memory.
	raw []byte
}

// OpenBacking opens <dir>/<prefix>_all_zscored.npy and the accompanying
// level-names file under the requested map mode.
func OpenBacking(dir, prefix string, mode MapMode, verbose bool) (*Backing, error) {
	if prefix == "" {
		prefix = DefaultGridPrefix
	}
	arrayPath := filepath.Join(dir, prefix+ZScoredSuffix)
	namesPath := filepath.Join(dir, prefix+LevelNamesSuffix)

	names, err := readLevelNames(namesPath)
	if err != nil {
		return nil, err
	}

	b := &Backing{LevelNames: names}
	switch mode {
	case MapNone:
		log.Printf("WARNING: no map mode given, loading the entire backing array into memory (%s)", arrayPath)
		data, shape, err := readNPYAll(arrayPath)
		if err != nil {
			return nil, err
		}
		if err := b.setShape(arrayPath, shape); err != nil {
			return nil, err
		}
		b.Data = data
	case MapRead, MapCopy:
		meta, err := readNPYMeta(arrayPath)
		if err != nil {
			return nil, err
		}
		if err := b.setShape(arrayPath, meta.shape); err != nil {
			return nil, err
		}
		if err := b.mmap(arrayPath, meta, mode); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown map mode %v", mode)
	}

	if len(b.LevelNames) != b.Shape[1] {
		return nil, fmt.Errorf("level-names file lists %d channels but array has %d", len(b.LevelNames), b.Shape[1])
	}
	if verbose {
		log.Printf("backing: %s shape %v, map mode %v, %d level names",
			arrayPath, b.Shape, mode, len(b.LevelNames))
	}
	return b, nil
}

func (b *Backing) setShape(path string, shape []int) error {
	if len(shape) != 4 {
		return fmt.Errorf("%s has rank %d, want [time, channel, lat, lon]", path, len(shape))
	}
	copy(b.Shape[:], shape)
	return nil
}

// mmap maps the array file and slices the float32 payload out of it. The
// data section starts at a 64-byte-aligned offset inside the page-aligned
// mapping, so reinterpreting it as float32s is safe.
func (b *Backing) mmap(path string, meta npyMeta, mode MapMode) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()

	n := 1
	for _, d := range b.Shape {
		n *= d
	}
	if want := meta.dataOffset + int64(n)*4; size < want {
		return fmt.Errorf("%s is %d bytes, header promises %d", path, size, want)
	}

	prot, flags := unix.PROT_READ, unix.MAP_SHARED
	if mode == MapCopy {
		prot, flags = unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE
	}
	raw, err := unix.Mmap(int(f.Fd()), 0, int(size), prot, flags)
	if err != nil {
		return fmt.Errorf("failed to mmap %s: %w", path, err)
	}

	b.raw = raw
	b.Data = unsafe.Slice((*float32)(unsafe.Pointer(&raw[meta.dataOffset])), n)
	return nil
}

// Close unmaps the backing file if it was mapped. Views constructed from
// this Backing must not be used afterwards.
func (b *Backing) Close() error {
	if b.raw == nil {
		b.Data = nil
		return nil
	}
	raw := b.raw
	b.raw, b.Data = nil, nil
	if err := unix.Munmap(raw); err != nil {
		return fmt.Errorf("failed to munmap backing array: %w", err)
	}
	return nil
}

// TimeLen returns the number of timesteps in the array.
func (b *Backing) TimeLen() int { return b.Shape[0] }

// Channels returns the number of channels in the array.
func (b *Backing) Channels() int { return b.Shape[1] }

// GridSize returns the lat and lon extents.
func (b *Backing) GridSize() (lat, lon int) { return b.Shape[2], b.Shape[3] }

// Frame returns the [lat*lon] plane for one timestep and channel, aliasing
// the backing storage.
func (b *Backing) Frame(t, ch int) []float32 {
	plane := b.Shape[2] * b.Shape[3]
	off := (t*b.Shape[1] + ch) * plane
	return b.Data[off : off+plane]
}

// ChannelIndex resolves a level-qualified channel name ("z_500", "tisr") to
// its channel position.
func (b *Backing) ChannelIndex(name string) (int, error) {
	for i, n := range b.LevelNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("channel %q not found in level names %v", name, b.LevelNames)
}

func readLevelNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open level-names file: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read level-names file: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("level-names file %s is empty", path)
	}
	return names, nil
}

// WriteLevelNames writes the channel order next to the backing array, one
// name per line. Used by cmd/prep and by tests.
func WriteLevelNames(path string, names []string) error {
	return os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0o644)
}
