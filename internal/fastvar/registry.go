package fastvar

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"fflagdump/internal/binfmt"
	"fflagdump/internal/errcode"
)

// Registry maps flag names to decoded flags. It has no ordering; use Names
// for a stable iteration order.
type Registry map[string]FastVar

// FromSlice collects flags by name. A later duplicate replaces an earlier one.
func FromSlice(flags []FastVar) Registry {
	reg := make(Registry, len(flags))
	for _, f := range flags {
		reg[f.Name] = f
	}
	return reg
}

// Names returns the flag names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the flags ordered by name.
func (r Registry) Sorted() []FastVar {
	out := make([]FastVar, 0, len(r))
	for _, name := range r.Names() {
		out = append(out, r[name])
	}
	return out
}

// Lookup returns the flag called name.
func (r Registry) Lookup(name string) (FastVar, error) {
	f, ok := r[name]
	if !ok {
		return FastVar{}, errcode.New(errcode.NotFound, "flag not found").WithContext("flag", name)
	}
	return f, nil
}

// Require returns the flag called name and fails unless it carries a value.
func (r Registry) Require(name string) (FastVar, error) {
	f, err := r.Lookup(name)
	if err != nil {
		return FastVar{}, err
	}
	if !f.Value.Usable() {
		return FastVar{}, errcode.New(errcode.Unusable, "flag has no usable value").
			WithContext("flag", name).
			WithContext("value_type", f.ValueType.String())
	}
	return f, nil
}

// Select resolves a mapping of real flag names to output identifiers. Every
// requested flag must be present with a usable value.
func (r Registry) Select(want map[string]string) (map[string]FastVar, error) {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]FastVar, len(want))
	for _, name := range names {
		f, err := r.Require(name)
		if err != nil {
			return nil, err
		}
		out[want[name]] = f
	}
	return out, nil
}

// Overlay returns a copy of r in which every usable flag from dyn replaces
// the entry of the same name.
func (r Registry) Overlay(dyn Registry) Registry {
	out := make(Registry, len(r)+len(dyn))
	for name, f := range r {
		out[name] = f
	}
	for name, f := range dyn {
		if f.Value.Usable() {
			out[name] = f
		}
	}
	return out
}

// Equal reports whether both registries hold the same flags.
func (r Registry) Equal(o Registry) bool {
	if len(r) != len(o) {
		return false
	}
	for name, f := range r {
		g, ok := o[name]
		if !ok || g != f {
			return false
		}
	}
	return true
}

// Fingerprint hashes the canonical encoding of the registry. Two registries
// with the same flags have the same fingerprint regardless of map order.
func (r Registry) Fingerprint() uint64 {
	h := xxhash.New()
	for _, f := range r.Sorted() {
		s := binfmt.NewStream(nil)
		if err := s.Put(f); err != nil {
			// Names longer than 4 GiB cannot occur in a decoded registry.
			continue
		}
		_, _ = h.Write(s.Bytes())
	}
	return h.Sum64()
}
