package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Writer writes layers in .cbfd format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new .cbfd file writer.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes a state dictionary with the given header fields.
//
// The tensor table, format version, id and creation time are filled in;
// other header fields (layer type, config, references, metadata) are
// taken from header as given.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.Tensor, header Header) error {
	if w.closed {
		return ErrClosed
	}
	return Encode(w.file, stateDict, header)
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Encode writes a complete .cbfd image to an io.Writer.
func Encode(out io.Writer, stateDict map[string]*tensor.Tensor, header Header) error {
	header.FormatVersion = FormatVersion
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	// Sorted names keep files byte-identical for identical inputs.
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		offset int64
		data   []byte
	)
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		t := stateDict[name]
		size := int64(t.NumElements() * float64Size)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape()),
			Offset: offset,
			Size:   size,
		})
		offset += size
		data = appendFloat64s(data, t.Data())
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], header.flags())
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := out.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	headerEnd := int64(FixedHeaderSize + len(headerJSON))
	if padding := dataOffset(int64(len(headerJSON))) - headerEnd; padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

func appendFloat64s(buf []byte, values []float64) []byte {
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}
