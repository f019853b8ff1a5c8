package main

import (
	"fmt"

	"github.com/agilira/orpheus"

	"fflagdump/internal/extract"
	"fflagdump/internal/fastvar"
	"fflagdump/internal/output"
	"fflagdump/internal/settings"
)

func (c *cli) setupSettingsCommand() {
	// settings <payload.json> [--json] [--exe=EXE]
	cmd := withCommon(orpheus.NewCommand("settings", "Decode a dynamic settings payload"))
	cmd.SetHandler(c.handleSettings)
	cmd.AddBoolFlag("json", "j", false, "print JSON")
	cmd.AddFlag("exe", "e", "", "overlay onto the flags decoded from EXE")
	c.app.AddCommand(cmd)
}

func (c *cli) handleSettings(ctx *orpheus.Context) error {
	path, err := requireArg(ctx, 0, "payload")
	if err != nil {
		return err
	}
	src := extract.FileSettings{Path: path}

	var reg fastvar.Registry
	if exe := ctx.GetFlagString("exe"); exe != "" {
		e, err := c.env(ctx)
		if err != nil {
			return err
		}
		ex, err := e.extractor(exe, true)
		if err != nil {
			return err
		}
		base, err := ex.Extract(c.ctx, extract.Latest)
		if err != nil {
			return err
		}
		if reg, err = extract.Runtime(c.ctx, base, src); err != nil {
			return err
		}
	} else {
		raw, err := src.Settings(c.ctx)
		if err != nil {
			return err
		}
		reg = settings.Decode(raw)
	}

	if ctx.GetFlagBool("json") {
		return output.EncodeRegistryJSON(c.stdout, reg)
	}
	for _, f := range reg.Sorted() {
		fmt.Fprintln(c.stdout, f)
	}
	return nil
}
