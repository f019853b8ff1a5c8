package main

import (
	"fmt"

	"github.com/agilira/orpheus"

	"fflagdump/internal/extract"
	"fflagdump/internal/fastvar"
	"fflagdump/internal/output"
)

func (c *cli) setupDumpCommands() {
	// dump <exe> [--version=V] [--json] [--out=FILE] [--no-cache]
	dumpCmd := withCommon(orpheus.NewCommand("dump", "Extract and print every flag"))
	dumpCmd.SetHandler(c.handleDump)
	dumpCmd.AddFlag("version", "v", extract.Latest, "build version (default: file digest)")
	dumpCmd.AddBoolFlag("json", "j", false, "print JSON")
	dumpCmd.AddFlag("out", "o", "", "also write JSON to FILE")
	dumpCmd.AddBoolFlag("no-cache", "", false, "skip the version cache")
	c.app.AddCommand(dumpCmd)

	// get <exe> <name> [--version=V]
	getCmd := withCommon(orpheus.NewCommand("get", "Print one flag"))
	getCmd.SetHandler(c.handleGet)
	getCmd.AddFlag("version", "v", extract.Latest, "build version (default: file digest)")
	getCmd.AddBoolFlag("no-cache", "", false, "skip the version cache")
	c.app.AddCommand(getCmd)
}

func (c *cli) registry(ctx *orpheus.Context, exe string) (fastvar.Registry, *env, error) {
	e, err := c.env(ctx)
	if err != nil {
		return nil, nil, err
	}
	ex, err := e.extractor(exe, !ctx.GetFlagBool("no-cache"))
	if err != nil {
		return nil, nil, err
	}
	version := ctx.GetFlagString("version")
	if version == "" {
		version = extract.Latest
	}
	reg, err := ex.Extract(c.ctx, version)
	if err != nil {
		return nil, nil, err
	}
	return reg, e, nil
}

func (c *cli) handleDump(ctx *orpheus.Context) error {
	exe, err := requireArg(ctx, 0, "exe")
	if err != nil {
		return err
	}
	reg, e, err := c.registry(ctx, exe)
	if err != nil {
		return err
	}

	if out := ctx.GetFlagString("out"); out != "" {
		if err := output.WriteRegistryJSON(out, reg); err != nil {
			return err
		}
		e.log.Info("wrote registry", "path", out, "flags", len(reg))
	}
	if ctx.GetFlagBool("json") {
		return output.EncodeRegistryJSON(c.stdout, reg)
	}
	for _, f := range reg.Sorted() {
		fmt.Fprintln(c.stdout, f)
	}
	return nil
}

func (c *cli) handleGet(ctx *orpheus.Context) error {
	exe, err := requireArg(ctx, 0, "exe")
	if err != nil {
		return err
	}
	name, err := requireArg(ctx, 1, "name")
	if err != nil {
		return err
	}
	reg, _, err := c.registry(ctx, exe)
	if err != nil {
		return err
	}
	f, err := reg.Require(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, f.Value)
	return nil
}
