// Package pex loads 64-bit Windows PE images into named, read-only sections.
package pex

import (
	"bytes"
	"debug/pe"
	"errors"
	"strings"

	goerrors "github.com/agilira/go-errors"

	"fflagdump/internal/errcode"
)

var (
	ErrNotPE        = errors.New("pex: not a PE file")
	ErrNotPE64      = errors.New("pex: not a PE32+ image")
	ErrNoSection    = errors.New("pex: section not found")
	ErrOutOfSection = errors.New("pex: range outside section")
)

// Section is one entry of the section table together with its raw on-disk
// bytes (SizeOfRawData long).
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	RawOffset      uint32
	Data           []byte
}

// Size returns the number of raw bytes held by the section.
func (s *Section) Size() int { return len(s.Data) }

// Contains reports whether [off, off+n) lies inside the section data.
func (s *Section) Contains(off, n int) bool {
	return off >= 0 && n >= 0 && off <= len(s.Data) && n <= len(s.Data)-off
}

// Slice returns Data[off:off+n] or an OUT_OF_BOUNDS error.
func (s *Section) Slice(off, n int) ([]byte, error) {
	if !s.Contains(off, n) {
		return nil, errcode.Wrap(ErrOutOfSection, errcode.OutOfBounds, "section range out of bounds").
			WithContext("section", s.Name).
			WithContext("offset", off).
			WithContext("len", n).
			WithContext("size", len(s.Data))
	}
	return s.Data[off : off+n], nil
}

// Image is a loaded PE32+ executable.
type Image struct {
	Machine   uint16
	ImageBase uint64
	Header    Header
	sections  []*Section
}

// Load probes data and parses its section table. The returned image does not
// retain data.
func Load(data []byte) (*Image, error) {
	hdr, err := Probe(data)
	if err != nil {
		return nil, err
	}

	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, formatErr(err, "parse PE headers", int64(hdr.Lfanew))
	}
	defer pf.Close()

	img := &Image{Machine: pf.FileHeader.Machine, Header: hdr}
	if oh, ok := pf.OptionalHeader.(*pe.OptionalHeader64); ok {
		img.ImageBase = oh.ImageBase
	}

	for _, ps := range pf.Sections {
		raw, err := ps.Data()
		if err != nil {
			return nil, formatErr(err, "read section data", int64(ps.Offset)).
				WithContext("section", ps.Name).
				WithContext("size", ps.Size)
		}
		img.sections = append(img.sections, &Section{
			Name:           strings.TrimRight(ps.Name, "\x00"),
			VirtualAddress: ps.VirtualAddress,
			VirtualSize:    ps.VirtualSize,
			RawOffset:      ps.Offset,
			Data:           raw,
		})
	}
	return img, nil
}

// Sections returns the sections in table order.
func (img *Image) Sections() []*Section { return img.sections }

// Section returns the first section whose name matches exactly.
func (img *Image) Section(name string) (*Section, error) {
	for _, s := range img.sections {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, errcode.Wrap(ErrNoSection, errcode.SectionNotFound, "section not found").
		WithContext("section", name)
}

// Required returns the code, read-only data and data sections.
func (img *Image) Required() (text, rdata, data *Section, err error) {
	return img.RequiredNamed(".text", ".rdata", ".data")
}

// RequiredNamed is Required with caller-chosen section names.
func (img *Image) RequiredNamed(code, rodata, rwdata string) (text, rdata, data *Section, err error) {
	if text, err = img.Section(code); err != nil {
		return nil, nil, nil, err
	}
	if rdata, err = img.Section(rodata); err != nil {
		return nil, nil, nil, err
	}
	if data, err = img.Section(rwdata); err != nil {
		return nil, nil, nil, err
	}
	return text, rdata, data, nil
}

// SectionByRVA returns the section whose virtual range covers rva.
func (img *Image) SectionByRVA(rva uint32) (*Section, bool) {
	for _, s := range img.sections {
		size := s.VirtualSize
		if uint32(len(s.Data)) > size {
			size = uint32(len(s.Data))
		}
		if rva >= s.VirtualAddress && rva-s.VirtualAddress < size {
			return s, true
		}
	}
	return nil, false
}

func formatErr(err error, msg string, off int64) *goerrors.Error {
	return errcode.Wrap(err, errcode.Format, msg).WithContext("offset", off)
}
