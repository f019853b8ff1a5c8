// Package extract ties the version cache, the binary source and the flag
// decoder together into one extraction call.
package extract

import (
	"context"
	"log/slog"

	"fflagdump/internal/cache"
	"fflagdump/internal/dump"
	"fflagdump/internal/errcode"
	"fflagdump/internal/fastvar"
	"fflagdump/internal/pex"
	"fflagdump/internal/settings"
)

// Latest is the version string that asks the VersionSource for the current
// build.
const Latest = "latest"

// Extractor produces the flag registry for a build version, consulting the
// cache before decoding the executable.
type Extractor struct {
	Cache    *cache.Cache // nil disables caching
	Source   BinarySource
	Versions VersionSource
	Decoder  *dump.Decoder
	Logger   *slog.Logger
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// ResolveVersion maps Latest through the VersionSource and returns any
// other version unchanged.
func (e *Extractor) ResolveVersion(ctx context.Context, version string) (string, error) {
	if version != Latest {
		return version, nil
	}
	if e.Versions == nil {
		return "", errcode.New(errcode.Config, "no version source for latest")
	}
	v, err := e.Versions.Latest(ctx)
	if err != nil {
		return "", err
	}
	e.logger().Debug("resolved latest version", "version", v)
	return v, nil
}

// Extract returns the registry for version. On a cache miss the executable
// is fetched, decoded and written back to the cache before returning. No
// partial registry is ever returned.
func (e *Extractor) Extract(ctx context.Context, version string) (fastvar.Registry, error) {
	version, err := e.ResolveVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	log := e.logger().With("version", version)

	if e.Cache != nil {
		reg, ok, err := e.Cache.Load(version)
		switch {
		case err != nil:
			log.Warn("cache unreadable, decoding again", "err", err)
		case ok:
			log.Info("cache hit", "flags", len(reg))
			return reg, nil
		}
	}

	res, err := e.Decode(ctx, version)
	if err != nil {
		return nil, err
	}
	reg := res.Registry()

	if e.Cache != nil {
		if err := e.Cache.Store(version, reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Decode fetches and decodes the executable for version without touching
// the cache.
func (e *Extractor) Decode(ctx context.Context, version string) (*dump.Result, error) {
	img, err := e.Image(ctx, version)
	if err != nil {
		return nil, err
	}
	dec := e.Decoder
	if dec == nil {
		dec = &dump.Decoder{Logger: e.Logger}
	}
	return dec.Decode(img)
}

// Image fetches and loads the executable for version.
func (e *Extractor) Image(ctx context.Context, version string) (*pex.Image, error) {
	if e.Source == nil {
		return nil, errcode.New(errcode.Config, "no binary source")
	}
	version, err := e.ResolveVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	raw, err := e.Source.Binary(ctx, version)
	if err != nil {
		return nil, err
	}
	e.logger().Debug("loaded executable", "version", version, "bytes", len(raw))
	return pex.Load(raw)
}

// Runtime overlays the dynamic settings from src onto the binary registry.
func Runtime(ctx context.Context, reg fastvar.Registry, src SettingsSource) (fastvar.Registry, error) {
	raw, err := src.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Overlay(settings.Decode(raw)), nil
}
