package datasets

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFixture writes a small backing archive under dir: shape
// [steps, 3, 2, 2] with every cell of frame (t, ch) holding t*100+ch, and a
// matching level-names file.
func writeFixture(t *testing.T, dir string, steps int) {
	t.Helper()

	const chans, lat, lon = 3, 2, 2
	data := make([]float32, steps*chans*lat*lon)
	for ts := 0; ts < steps; ts++ {
		for ch := 0; ch < chans; ch++ {
			base := (ts*chans + ch) * lat * lon
			for i := 0; i < lat*lon; i++ {
				data[base+i] = float32(ts*100 + ch)
			}
		}
	}

	f, err := os.Create(filepath.Join(dir, DefaultGridPrefix+ZScoredSuffix))
	if err != nil {
		t.Fatalf("failed to create fixture array: %v", err)
	}
	defer f.Close()
	if err := WriteNPY(f, []int{steps, chans, lat, lon}, data); err != nil {
		t.Fatalf("failed to write fixture array: %v", err)
	}

	names := []string{"z_500", "t_850", "tisr"}
	if err := WriteLevelNames(filepath.Join(dir, DefaultGridPrefix+LevelNamesSuffix), names); err != nil {
		t.Fatalf("failed to write level names: %v", err)
	}
}

func TestOpenBacking_MapModes(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 12)

	for _, mode := range []MapMode{MapNone, MapRead, MapCopy} {
		b, err := OpenBacking(dir, "", mode, false)
		if err != nil {
			t.Fatalf("OpenBacking(%v) failed: %v", mode, err)
		}

		if b.Shape != [4]int{12, 3, 2, 2} {
			t.Fatalf("mode %v: shape = %v, want [12 3 2 2]", mode, b.Shape)
		}
		if len(b.LevelNames) != 3 {
			t.Fatalf("mode %v: level names = %v", mode, b.LevelNames)
		}

		frame := b.Frame(7, 2)
		if len(frame) != 4 {
			t.Fatalf("mode %v: frame length = %d, want 4", mode, len(frame))
		}
		for _, v := range frame {
			if v != 702 {
				t.Fatalf("mode %v: Frame(7, 2) = %v, want all 702", mode, frame)
			}
		}

		if ch, err := b.ChannelIndex("t_850"); err != nil || ch != 1 {
			t.Fatalf("mode %v: ChannelIndex(t_850) = %d, %v", mode, ch, err)
		}
		if _, err := b.ChannelIndex("q_700"); err == nil {
			t.Fatalf("mode %v: expected error for unknown channel", mode)
		}

		if err := b.Close(); err != nil {
			t.Fatalf("mode %v: Close failed: %v", mode, err)
		}
	}
}

func TestParseMapMode(t *testing.T) {
	cases := map[string]MapMode{"": MapNone, "none": MapNone, "r": MapRead, "c": MapCopy, " R ": MapRead}
	for in, want := range cases {
		got, err := ParseMapMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMapMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMapMode("r+"); err == nil {
		t.Error("ParseMapMode(r+): expected error")
	}
}

func TestOpenBacking_LevelCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 4)
	path := filepath.Join(dir, DefaultGridPrefix+LevelNamesSuffix)
	if err := WriteLevelNames(path, []string{"z_500", "t_850"}); err != nil {
		t.Fatalf("failed to rewrite level names: %v", err)
	}
	if _, err := OpenBacking(dir, "", MapNone, false); err == nil {
		t.Fatal("expected error for level-names/channel count mismatch")
	}
}

func TestNPYMetaOffset(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 3)
	path := filepath.Join(dir, DefaultGridPrefix+ZScoredSuffix)

	meta, err := readNPYMeta(path)
	if err != nil {
		t.Fatalf("readNPYMeta failed: %v", err)
	}
	if len(meta.shape) != 4 || meta.shape[0] != 3 {
		t.Fatalf("meta shape = %v, want [3 3 2 2]", meta.shape)
	}
	if meta.dataOffset%64 != 0 {
		t.Fatalf("data offset %d is not 64-byte aligned", meta.dataOffset)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if want := meta.dataOffset + 3*3*2*2*4; fi.Size() != want {
		t.Fatalf("file size = %d, want offset %d + payload = %d", fi.Size(), meta.dataOffset, want)
	}
}
