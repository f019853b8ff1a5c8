// Package pextest builds minimal PE32+ images for tests.
package pextest

import "fflagdump/internal/binfmt"

const (
	ImageBase     = 0x140000000
	MachineAMD64  = 0x8664
	FileAlignment = 0x200

	lfanew     = 0x40
	optHdrSize = 240
	secHdrSize = 40
)

// Section describes one section of a synthetic image. Data becomes the raw
// section bytes verbatim.
type Section struct {
	Name string
	VA   uint32
	Data []byte
}

// Build lays out a DOS stub, PE headers, a section table and the section
// bodies, each body aligned to FileAlignment.
func Build(secs ...Section) []byte {
	return BuildMagic(0x20B, secs...)
}

// BuildMagic is Build with an explicit optional header magic.
func BuildMagic(magic uint16, secs ...Section) []byte {
	headers := lfanew + 4 + 20 + optHdrSize + secHdrSize*len(secs)
	offsets := make([]uint32, len(secs))
	next := align(headers)
	for i, s := range secs {
		offsets[i] = uint32(next)
		next = align(next + len(s.Data))
	}

	w := binfmt.NewStream(nil)

	// DOS header.
	_ = w.WriteBytes([]byte("MZ"))
	_ = w.WriteBytes(make([]byte, 0x3C-2))
	_ = w.WriteU32LE(lfanew)

	_ = w.WriteBytes([]byte("PE\x00\x00"))

	// COFF file header.
	_ = w.WriteU16LE(MachineAMD64)
	_ = w.WriteU16LE(uint16(len(secs)))
	_ = w.WriteU32LE(0) // timestamp
	_ = w.WriteU32LE(0) // symbol table
	_ = w.WriteU32LE(0) // symbol count
	_ = w.WriteU16LE(optHdrSize)
	_ = w.WriteU16LE(0x0022) // executable, large address aware

	// Optional header.
	_ = w.WriteU16LE(magic)
	_ = w.WriteBytes([]byte{14, 0}) // linker version
	for range 5 {
		_ = w.WriteU32LE(0) // code/data sizes, entry point, base of code
	}
	_ = w.WriteU64LE(ImageBase)
	_ = w.WriteU32LE(0x1000) // section alignment
	_ = w.WriteU32LE(FileAlignment)
	for range 6 {
		_ = w.WriteU16LE(0) // os/image/subsystem versions
	}
	_ = w.WriteU32LE(0) // win32 version
	_ = w.WriteU32LE(0) // size of image
	_ = w.WriteU32LE(uint32(align(headers)))
	_ = w.WriteU32LE(0) // checksum
	_ = w.WriteU16LE(3) // console subsystem
	_ = w.WriteU16LE(0) // dll characteristics
	for range 4 {
		_ = w.WriteU64LE(0) // stack/heap reserve and commit
	}
	_ = w.WriteU32LE(0)  // loader flags
	_ = w.WriteU32LE(16) // data directories
	_ = w.WriteBytes(make([]byte, 16*8))

	// Section table.
	for i, s := range secs {
		var name [8]byte
		copy(name[:], s.Name)
		_ = w.WriteBytes(name[:])
		_ = w.WriteU32LE(uint32(len(s.Data))) // virtual size
		_ = w.WriteU32LE(s.VA)
		_ = w.WriteU32LE(uint32(len(s.Data)))
		_ = w.WriteU32LE(offsets[i])
		_ = w.WriteU32LE(0)
		_ = w.WriteU32LE(0)
		_ = w.WriteU16LE(0)
		_ = w.WriteU16LE(0)
		_ = w.WriteU32LE(characteristics(s.Name))
	}

	for i, s := range secs {
		pad(w, int(offsets[i]))
		_ = w.WriteBytes(s.Data)
	}
	pad(w, next)
	return w.Bytes()
}

func align(n int) int {
	return (n + FileAlignment - 1) &^ (FileAlignment - 1)
}

func pad(w *binfmt.Stream, to int) {
	if n := to - w.Len(); n > 0 {
		_ = w.WriteBytes(make([]byte, n))
	}
}

func characteristics(name string) uint32 {
	switch name {
	case ".text":
		return 0x60000020 // code, execute, read
	case ".data":
		return 0xC0000040 // initialized data, read, write
	default:
		return 0x40000040 // initialized data, read
	}
}
