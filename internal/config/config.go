// Package config loads compiler configuration from a YAML document
// and lets CLI flags override individual keys. No example repo in the
// pack uses gopkg.in/yaml.v3 directly (kanso only pulls it in
// transitively through its LSP stack), so the struct-tag/Unmarshal
// idiom here follows the library's own documented usage rather than a
// pack-internal precedent.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OptLevel is the optimizer's aggressiveness, matching spec.md §3's
// 0-3 scale (0: emit-only, 3: everything including Inlining/SROA/
// LoopSIMD).
type OptLevel int

const (
	OptNone OptLevel = iota
	OptBasic
	OptDefault
	OptAggressive
)

// Config is the full set of keys a compilation run can be tuned with.
// All fields also live under a document's top-level `config:` section
// when the input is a YAML module description (spec.md §6).
type Config struct {
	OptLevel           OptLevel `yaml:"opt_level"`
	CPUProfile         string   `yaml:"cpu_profile"`
	EmitIntermediate   bool     `yaml:"emit_intermediate"`
	KeepIntermediates  bool     `yaml:"keep_intermediates"`
	TargetTriple       string   `yaml:"target_triple"`
}

// Default returns the configuration a bare `aurorac compile` run uses
// with no YAML config: section and no flag overrides.
func Default() Config {
	return Config{
		OptLevel:     OptDefault,
		CPUProfile:   "generic",
		TargetTriple: "x86_64-unknown-linux-gnu",
	}
}

// document is the shape of a full compile input: the typed module
// plus an optional config section. Only Config is this package's
// concern; the Module payload is decoded by internal/hir's caller.
type document struct {
	Config Config `yaml:"config"`
}

// Load reads a YAML file's `config:` section, falling back to
// Default() for any key it omits.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	var doc document
	doc.Config = cfg
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return doc.Config, nil
}

// FlagSet registers every config key as a CLI flag against fs. The
// flags are registered before the YAML document's own config: section
// has been read (the document's path is itself a flag.Args() value),
// so their defaults are only a display placeholder — Apply below never
// trusts a flag's default value, only whether the user actually set it.
type FlagSet struct {
	fs                *flag.FlagSet
	optLevel          *int
	cpuProfile        *string
	emitIntermediate  *bool
	keepIntermediates *bool
	targetTriple      *string
}

func RegisterFlags(fs *flag.FlagSet, cfg Config) *FlagSet {
	return &FlagSet{
		fs:                fs,
		optLevel:          fs.Int("opt-level", int(cfg.OptLevel), "optimization level 0-3"),
		cpuProfile:        fs.String("cpu-profile", cfg.CPUProfile, "scheduler CPU profile: generic, falcon, harrier"),
		emitIntermediate:  fs.Bool("emit-intermediate", cfg.EmitIntermediate, "stored in the config; no command reads it (compile always prints the final AIR text)"),
		keepIntermediates: fs.Bool("keep-intermediates", cfg.KeepIntermediates, "stored in the config; no command reads it, no files are written"),
		targetTriple:      fs.String("target", cfg.TargetTriple, "target triple"),
	}
}

// Apply overlays onto cfg only the flags the user actually passed on
// the command line, matching spec.md §6's precedence rule: a flag
// wins over the YAML config: section, but an unset flag must never
// clobber a value the document already resolved.
func (fl *FlagSet) Apply(cfg Config) Config {
	set := make(map[string]bool)
	fl.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["opt-level"] {
		cfg.OptLevel = OptLevel(*fl.optLevel)
	}
	if set["cpu-profile"] {
		cfg.CPUProfile = *fl.cpuProfile
	}
	if set["emit-intermediate"] {
		cfg.EmitIntermediate = *fl.emitIntermediate
	}
	if set["keep-intermediates"] {
		cfg.KeepIntermediates = *fl.keepIntermediates
	}
	if set["target"] {
		cfg.TargetTriple = *fl.targetTriple
	}
	return cfg
}
