// Package serialization stores weights dictionaries in the .aprw binary
// format.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00  Magic "APRW"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE)
//	    0x0C  Reserved
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 of the data section (32 bytes)
//	  [Header: JSON metadata]
//	  [Data: little-endian float32, 64-byte aligned]
//
// Each Connections block contributes two regions to the data section: the
// current weights followed by the previous iterate, both [output, input] in
// row-major order. The header lists, per block, its name, sizes and the
// offsets of both regions relative to the start of the data section.
//
// Example usage:
//
//	if err := serialization.WriteFile("net.aprw", weights, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	r, err := serialization.Open("net.aprw")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	weights, err := r.ReadWeights()
//
// Readers validate the header (names, offsets, bounds) and the checksum
// before returning any data.
package serialization
