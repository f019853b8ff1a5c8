// Package scanner finds byte signatures with wildcards in section data.
package scanner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fflagdump/internal/errcode"
	"fflagdump/internal/pex"
)

var ErrBadPattern = errors.New("scanner: malformed pattern")

// Pattern is a byte signature. Positions with a false mask entry match any
// byte.
type Pattern struct {
	bytes []byte
	mask  []bool
}

// Parse reads a signature of space-separated hex byte pairs, where "??" or
// "?" stands for any byte, e.g. "48 8D 0D ?? ?? ?? ??".
func Parse(sig string) (Pattern, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 {
		return Pattern{}, errcode.Wrap(ErrBadPattern, errcode.Pattern, "empty pattern")
	}
	p := Pattern{bytes: make([]byte, len(fields)), mask: make([]bool, len(fields))}
	for i, f := range fields {
		if f == "??" || f == "?" {
			continue
		}
		if len(f) != 2 {
			return Pattern{}, badToken(f, i)
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, badToken(f, i)
		}
		p.bytes[i] = byte(v)
		p.mask[i] = true
	}
	return p, nil
}

// MustParse is Parse for package-level constants.
func MustParse(sig string) Pattern {
	p, err := Parse(sig)
	if err != nil {
		panic(err)
	}
	return p
}

func badToken(tok string, i int) error {
	return errcode.Wrap(ErrBadPattern, errcode.Pattern, "bad pattern token").
		WithContext("token", tok).
		WithContext("index", i)
}

// Len returns the signature length in bytes.
func (p Pattern) Len() int { return len(p.bytes) }

// Match reports whether b is accepted at position i.
func (p Pattern) Match(b byte, i int) bool {
	return !p.mask[i] || p.bytes[i] == b
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if !p.mask[i] {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", p.bytes[i])
	}
	return sb.String()
}

// ScanBytes returns the start offset of every window of data that matches p.
// Only windows lying entirely inside data are considered; overlapping matches
// are all reported, in ascending order.
func ScanBytes(data []byte, p Pattern) []int {
	n := p.Len()
	if n == 0 || n > len(data) {
		return nil
	}
	var out []int
	for off := 0; off+n <= len(data); off++ {
		if p.matchAt(data[off : off+n]) {
			out = append(out, off)
		}
	}
	return out
}

func (p Pattern) matchAt(window []byte) bool {
	for i, b := range window {
		if p.mask[i] && p.bytes[i] != b {
			return false
		}
	}
	return true
}

// Scan searches the named section and returns offsets relative to its start.
func Scan(img *pex.Image, p Pattern, section string) ([]int, error) {
	s, err := img.Section(section)
	if err != nil {
		return nil, err
	}
	return ScanBytes(s.Data, p), nil
}

// ScanAll searches every section and returns file offsets (section offset
// plus the section's raw data pointer), in section table order.
func ScanAll(img *pex.Image, p Pattern) []int {
	var out []int
	for _, s := range img.Sections() {
		for _, off := range ScanBytes(s.Data, p) {
			out = append(out, int(s.RawOffset)+off)
		}
	}
	return out
}
