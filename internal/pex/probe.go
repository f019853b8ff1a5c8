package pex

import (
	"bytes"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"fflagdump/internal/errcode"
)

const (
	dosMagic      = 0x5A4D     // "MZ"
	peSignature   = 0x00004550 // "PE\0\0"
	lfanewOffset  = 0x3C
	fileHeaderLen = 20
	magicPE32Plus = 0x20B
)

// Header is the subset of the DOS/COFF headers checked before a full parse.
type Header struct {
	Lfanew           uint32
	Machine          uint16
	NumberOfSections uint16
	OptionalMagic    uint16
}

// Probe validates the DOS stub, the PE signature and the PE32+ optional
// header magic. It reads only fixed offsets and never parses section tables.
func Probe(data []byte) (Header, error) {
	var h Header
	ks := kaitai.NewStream(bytes.NewReader(data))

	mz, err := ks.ReadU2le()
	if err != nil {
		return h, formatErr(err, "short DOS header", 0)
	}
	if mz != dosMagic {
		return h, formatErr(ErrNotPE, "missing MZ signature", 0).WithContext("found", mz)
	}

	if _, err := ks.Seek(lfanewOffset, io.SeekStart); err != nil {
		return h, formatErr(err, "seek e_lfanew", lfanewOffset)
	}
	if h.Lfanew, err = ks.ReadU4le(); err != nil {
		return h, formatErr(err, "short DOS header", lfanewOffset)
	}

	if _, err := ks.Seek(int64(h.Lfanew), io.SeekStart); err != nil {
		return h, formatErr(err, "seek PE header", int64(h.Lfanew))
	}
	sig, err := ks.ReadU4le()
	if err != nil {
		return h, formatErr(err, "PE header past end of file", int64(h.Lfanew))
	}
	if sig != peSignature {
		return h, formatErr(ErrNotPE, "missing PE signature", int64(h.Lfanew)).WithContext("found", sig)
	}

	if h.Machine, err = ks.ReadU2le(); err != nil {
		return h, formatErr(err, "short file header", int64(h.Lfanew)+4)
	}
	if h.NumberOfSections, err = ks.ReadU2le(); err != nil {
		return h, formatErr(err, "short file header", int64(h.Lfanew)+6)
	}

	optOff := int64(h.Lfanew) + 4 + fileHeaderLen
	if _, err := ks.Seek(optOff, io.SeekStart); err != nil {
		return h, formatErr(err, "seek optional header", optOff)
	}
	if h.OptionalMagic, err = ks.ReadU2le(); err != nil {
		return h, formatErr(err, "missing optional header", optOff)
	}
	if h.OptionalMagic != magicPE32Plus {
		return h, formatErr(ErrNotPE64, "optional header is not PE32+", optOff).WithContext("found", h.OptionalMagic)
	}
	return h, nil
}
