package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"fflagdump/internal/errcode"
	"fflagdump/internal/mmfile"
	"fflagdump/internal/settings"
)

// BinarySource fetches the executable for a build version.
type BinarySource interface {
	Binary(ctx context.Context, version string) ([]byte, error)
}

// VersionSource resolves the current build version.
type VersionSource interface {
	Latest(ctx context.Context) (string, error)
}

// SettingsSource fetches the dynamic settings key/value map.
type SettingsSource interface {
	Settings(ctx context.Context) (map[string]string, error)
}

// FileBinary serves every version from one local executable.
type FileBinary struct {
	Path string
}

func (f FileBinary) Binary(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := mmfile.ReadCopy(f.Path)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "read executable").WithContext("path", f.Path)
	}
	return data, nil
}

// FixedVersion always reports the same version.
type FixedVersion string

func (v FixedVersion) Latest(context.Context) (string, error) { return string(v), nil }

// FileDigest names the build of a local executable by the xxhash of its
// contents, so a rebuilt file never hits a stale cache entry.
type FileDigest struct {
	Path string
}

func (f FileDigest) Latest(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, cleanup, err := mmfile.Map(f.Path)
	if err != nil {
		return "", errcode.Wrap(err, errcode.IO, "map executable").WithContext("path", f.Path)
	}
	defer cleanup()
	return fmt.Sprintf("file-%016x", xxhash.Sum64(data)), nil
}

// FileSettings reads a settings payload document from disk.
type FileSettings struct {
	Path string
}

func (f FileSettings) Settings(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.IO, "open settings payload").WithContext("path", f.Path)
	}
	defer fh.Close()
	return settings.ParsePayload(fh)
}

// StaticSettings is an in-memory settings map.
type StaticSettings map[string]string

func (s StaticSettings) Settings(context.Context) (map[string]string, error) { return s, nil }
