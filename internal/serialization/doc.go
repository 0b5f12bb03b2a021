// Package serialization implements the .cbfd weight file format.
//
// A .cbfd file stores one layer: its configuration and its weights.
//
//	Format Structure:
//	  0x00  [4 bytes:  Magic "CBFD"]
//	  0x04  [4 bytes:  Version (uint32 LE)]
//	  0x08  [4 bytes:  Flags (uint32 LE)]
//	  0x0C  [4 bytes:  Reserved]
//	  0x10  [8 bytes:  Header size (uint64 LE)]
//	  0x18  [8 bytes:  Data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [Header: JSON metadata]
//	        [Padding to a 64-byte boundary]
//	        [Tensor data: little-endian float64]
//
// The JSON header carries a file id, the layer type, the layer
// configuration as raw JSON and a table of tensors with their offsets.
//
// Example usage:
//
//	// Save
//	w, err := serialization.NewWriter("layer.cbfd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//	err = w.WriteStateDict(layer.StateDict(), serialization.Header{LayerType: "CBFD"})
//
//	// Load
//	r, err := serialization.NewReader("layer.cbfd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	state, err := r.ReadStateDict()
package serialization
