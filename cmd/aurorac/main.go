// Command aurorac is the backend's CLI entry point: it loads a typed
// module description plus its compiler configuration, runs it through
// the full MIR/AIR pipeline, and prints the resulting AIR. Grounded on
// cmd/kanso-cli's argv-indexed, color-coded entry point, extended with
// a standard-library flag.FlagSet since a multi-flag driver outgrows
// plain os.Args indexing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"aurorac/internal/airtext"
	"aurorac/internal/config"
	"aurorac/internal/driver"
	"aurorac/internal/hir"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		runCompile(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: aurorac compile <module.yaml> [flags]")
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	fl := config.RegisterFlags(fs, config.Default())
	if err := fs.Parse(args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, err := config.Load(path)
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}
	cfg = fl.Apply(cfg)

	mod, err := hir.LoadModule(path)
	if err != nil {
		color.Red("module: %v", err)
		os.Exit(1)
	}

	d := driver.New(cfg)
	airMod, reports := d.CompileModule(mod)

	failed := false
	for _, r := range reports {
		if r.Err != nil {
			failed = true
			color.Red("error[%s]: %s: %s", r.Err.Code, r.Name, r.Err.Message)
			continue
		}
		applied := 0
		for _, p := range r.PassResults {
			if p.Changed {
				applied++
			}
		}
		color.Green("  - %s: %d pass rewrites, %d peephole rewrites, %d bytes spilled",
			r.Name, applied, r.Peepholes, r.SpillBytes)
	}

	fmt.Println(airtext.Print(airMod))

	if failed {
		os.Exit(1)
	}
	color.Green("compiled %s (%s, opt-level %d)", mod.Name, cfg.CPUProfile, cfg.OptLevel)
}
