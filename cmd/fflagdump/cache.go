package main

import (
	"fmt"

	"github.com/agilira/orpheus"

	"fflagdump/internal/cache"
)

func (c *cli) setupCacheCommands() {
	cacheCmd := orpheus.NewCommand("cache", "Inspect the version cache")

	withCommon(cacheCmd.Subcommand("show", "Print the cached version and flag count", c.handleCacheShow)).
		AddBoolFlag("flags", "f", false, "also list the cached flags")
	withCommon(cacheCmd.Subcommand("clear", "Remove the cache file", c.handleCacheClear))

	c.app.AddCommand(cacheCmd)
}

func (c *cli) openCache(ctx *orpheus.Context) (*cache.Cache, error) {
	e, err := c.env(ctx)
	if err != nil {
		return nil, err
	}
	return cache.Open(e.cfg.CachePath, e.log), nil
}

func (c *cli) handleCacheShow(ctx *orpheus.Context) error {
	vc, err := c.openCache(ctx)
	if err != nil {
		return err
	}
	version, reg, ok, err := vc.Peek()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.stdout, "%s: empty\n", vc.Path())
		return nil
	}
	fmt.Fprintf(c.stdout, "%s: version %s, %d flags, fingerprint %016x\n",
		vc.Path(), version, len(reg), reg.Fingerprint())
	if ctx.GetFlagBool("flags") {
		for _, f := range reg.Sorted() {
			fmt.Fprintln(c.stdout, f)
		}
	}
	return nil
}

func (c *cli) handleCacheClear(ctx *orpheus.Context) error {
	vc, err := c.openCache(ctx)
	if err != nil {
		return err
	}
	if err := vc.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "cleared %s\n", vc.Path())
	return nil
}
