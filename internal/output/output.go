// Package output writes extraction results to files.
package output

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"fflagdump/internal/disasm"
	"fflagdump/internal/dump"
	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
)

// WriteRegistryJSON writes the registry as a name-sorted JSON array.
func WriteRegistryJSON(path string, reg fastvar.Registry) error {
	return writeJSON(path, reg.Sorted())
}

// EncodeRegistryJSON streams the registry as a name-sorted JSON array.
func EncodeRegistryJSON(w io.Writer, reg fastvar.Registry) error {
	return encodeJSON(w, reg.Sorted())
}

// WriteSitesJSON writes decoded registration sites.
func WriteSitesJSON(path string, sites []dump.Site) error {
	return writeJSON(path, sites)
}

// WriteDOT writes a rendered DOT graph.
func WriteDOT(path, dot string) error {
	return writeFile(path, []byte(dot))
}

// WriteASM writes disassembled instructions to asm/<name>.txt under dir.
func WriteASM(dir, name string, insts []disasm.Inst, lookup disasm.SymbolLookup, annotators ...disasm.Annotator) error {
	return writeFile(filepath.Join(dir, "asm", name+".txt"), []byte(disasm.Format(insts, lookup, annotators...)))
}

func writeFile(path string, data []byte) error {
	if err := mkdirParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errcode.Wrap(err, errcode.IO, "output: write").WithContext("path", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := mkdirParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errcode.Wrap(err, errcode.IO, "output: create").WithContext("path", path)
	}
	defer f.Close()

	if err := encodeJSON(f, v); err != nil {
		return errcode.Wrap(err, errcode.IO, "output: encode").WithContext("path", path)
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mkdirParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errcode.Wrap(err, errcode.IO, "output: mkdir").WithContext("path", dir)
	}
	return nil
}
