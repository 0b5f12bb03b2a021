package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes      = "CBFD"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	DTypeFloat64    = "float64"
	float64Size     = 8
)

// Flags for the .cbfd format.
const (
	FlagHasReferences uint32 = 1 << 0 // bit 0: m_w and m_b stored as tensors
	FlagHasMetadata   uint32 = 1 << 1 // bit 1: custom metadata included
)

// Header represents the JSON header in a .cbfd file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ID            string            `json:"id"`                   // Random file id (UUID)
	CreatedAt     time.Time         `json:"created_at"`           // When the file was written
	LayerType     string            `json:"layer_type"`           // e.g. "CBFD"
	Config        json.RawMessage   `json:"config,omitempty"`     // Layer configuration
	References    bool              `json:"references,omitempty"` // Whether m_w/m_b are stored
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes a tensor in the .cbfd file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "kernel", "0.kernel")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// flags derives the fixed-header flag word from the JSON header.
func (h *Header) flags() uint32 {
	var flags uint32
	if h.References {
		flags |= FlagHasReferences
	}
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	return flags
}

// dataOffset returns where tensor data begins for a JSON header of the
// given size.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	padding := (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
	return pos + padding
}
