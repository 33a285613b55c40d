package datasets

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sbinet/npyio"
)

// npyMeta is the part of a .npy header the backing array needs beyond what
// npyio validates: the byte offset of the data section, which npyio does not
// export, plus the array shape.
type npyMeta struct {
	shape      []int
	dataOffset int64
}

// readNPYMeta parses the .npy prologue of the file at path. The dtype and
// layout are validated through npyio; the data offset is computed from the
// raw header-length field (magic + version + length prefix + padded dict).
func readNPYMeta(path string) (npyMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return npyMeta{}, err
	}
	defer f.Close()

	var pre [12]byte
	if _, err := io.ReadFull(f, pre[:10]); err != nil {
		return npyMeta{}, fmt.Errorf("failed to read npy prologue: %w", err)
	}
	if string(pre[:6]) != "\x93NUMPY" {
		return npyMeta{}, fmt.Errorf("%s is not a npy file", path)
	}

	var offset int64
	switch major := pre[6]; major {
	case 1:
		offset = 10 + int64(binary.LittleEndian.Uint16(pre[8:10]))
	case 2, 3:
		if _, err := io.ReadFull(f, pre[10:12]); err != nil {
			return npyMeta{}, fmt.Errorf("failed to read npy prologue: %w", err)
		}
		offset = 12 + int64(binary.LittleEndian.Uint32(pre[8:12]))
	default:
		return npyMeta{}, fmt.Errorf("unsupported npy version %d in %s", major, path)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return npyMeta{}, err
	}
	r, err := npyio.NewReader(f)
	if err != nil {
		return npyMeta{}, fmt.Errorf("failed to parse npy header of %s: %w", path, err)
	}
	dt := r.Header.Descr.Type
	if dt != "<f4" && dt != "f4" {
		return npyMeta{}, fmt.Errorf("%s holds dtype %q, want little-endian float32", path, dt)
	}
	if r.Header.Descr.Fortran {
		return npyMeta{}, fmt.Errorf("%s is Fortran-ordered; the backing array must be C-ordered", path)
	}

	return npyMeta{shape: r.Header.Descr.Shape, dataOffset: offset}, nil
}

// readNPYAll fully materializes the file's float32 payload via npyio.
func readNPYAll(path string) ([]float32, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse npy header of %s: %w", path, err)
	}
	var data []float32
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("failed to read npy payload of %s: %w", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}

// WriteNPY writes data as a C-ordered little-endian float32 .npy array of
// the given shape. npyio only writes shapes it can infer from Go values, so
// the 4-D backing array's header is emitted directly; the format is the
// npy v1.0 prologue with the dict padded to a 64-byte boundary.
func WriteNPY(w io.Writer, shape []int, data []float32) error {
	n := 1
	dims := make([]string, len(shape))
	for i, d := range shape {
		if d <= 0 {
			return fmt.Errorf("invalid npy shape %v", shape)
		}
		n *= d
		dims[i] = fmt.Sprintf("%d", d)
	}
	if n != len(data) {
		return fmt.Errorf("npy shape %v wants %d elements, have %d", shape, n, len(data))
	}

	tuple := strings.Join(dims, ", ")
	if len(dims) == 1 {
		tuple += ","
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", tuple)
	pad := 64 - (10+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	dict += strings.Repeat(" ", pad) + "\n"

	hdr := make([]byte, 0, 10+len(dict))
	hdr = append(hdr, "\x93NUMPY"...)
	hdr = append(hdr, 1, 0)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(len(dict)))
	hdr = append(hdr, dict...)

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("failed to write npy header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("failed to write npy payload: %w", err)
	}
	return nil
}
