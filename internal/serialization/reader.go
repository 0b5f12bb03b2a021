package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/cbfd/internal/tensor"
)

// Reader reads layers from .cbfd format.
type Reader struct {
	src        io.ReadSeeker
	closer     io.Closer
	header     Header
	flags      uint32
	dataOffset int64    // Offset where tensor data starts
	dataSize   int64    // Size of the data section
	checksum   [32]byte // SHA-256 of the data section
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewReader opens a .cbfd file with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens a .cbfd file with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	r, err := newReader(file, info.Size(), opts)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	r.closer = file
	return r, nil
}

// Decode reads a complete .cbfd image held in memory.
func Decode(data []byte, opts ReaderOptions) (*Reader, error) {
	return newReader(bytes.NewReader(data), int64(len(data)), opts)
}

func newReader(src io.ReadSeeker, fileSize int64, opts ReaderOptions) (*Reader, error) {
	r := &Reader{src: src, opts: opts}
	if err := r.parseHeader(fileSize); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if err := ValidateHeader(&r.header, r.dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return r, nil
}

// parseHeader reads the fixed header and the JSON header, then verifies
// the data checksum unless disabled.
func (r *Reader) parseHeader(fileSize int64) error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.src, fixed); err != nil {
		if string(fixed[:4]) != MagicBytes {
			return ErrInvalidMagic
		}
		return fmt.Errorf("%w: fixed header: %w", ErrTruncated, err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.src, headerBytes); err != nil {
		return fmt.Errorf("%w: header JSON: %w", ErrTruncated, err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if r.header.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header says %d", ErrUnsupportedVersion, r.header.FormatVersion)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	r.dataOffset = dataOffset(int64(headerSize))
	if dataSize > uint64(math.MaxInt64) || r.dataOffset+int64(dataSize) > fileSize {
		return fmt.Errorf("%w: data section of %d bytes at offset %d exceeds file size %d",
			ErrTruncated, dataSize, r.dataOffset, fileSize)
	}
	r.dataSize = int64(dataSize)

	if r.opts.SkipChecksumValidation {
		return nil
	}
	if _, err := r.src.Seek(r.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	computed, err := ComputeChecksumReader(io.LimitReader(r.src, r.dataSize))
	if err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	return ValidateChecksum(computed, r.checksum)
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the fixed-header flag word.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// Checksum returns the stored SHA-256 of the data section.
func (r *Reader) Checksum() [32]byte {
	return r.checksum
}

// TensorNames returns the names of all tensors in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the table entry of a tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for _, meta := range r.header.Tensors {
		if meta.Name == name {
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor reads a single tensor.
func (r *Reader) LoadTensor(name string) (*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	if meta.DType != DTypeFloat64 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, meta.DType)
	}

	if _, err := r.src.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	raw := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.src, raw); err != nil {
		return nil, fmt.Errorf("%w: tensor %s: %w", ErrTruncated, name, err)
	}

	values := make([]float64, len(raw)/float64Size)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*float64Size:]))
	}
	t, err := tensor.FromSlice(values, tensor.Shape(meta.Shape))
	if err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	return t, nil
}

// ReadStateDict reads all tensors into a state dictionary.
func (r *Reader) ReadStateDict() (map[string]*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	state := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		state[meta.Name] = t
	}
	return state, nil
}

// Close closes the reader and the underlying file, if any.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
