// Package driver sequences the seven compilation stages — HIR,
// SSA-form MIR build, optimization, AIR emission, register
// allocation, peephole rewriting, and scheduling — per spec.md §5:
// independent functions run concurrently on a bounded worker pool;
// within one function every stage runs sequentially on a single
// goroutine. A panic or pass error in one function is caught and
// reported against that function alone; every other function in the
// module still compiles.
package driver

import (
	"fmt"
	"runtime"
	"sync"

	"aurorac/internal/air"
	"aurorac/internal/config"
	"aurorac/internal/diagnostics"
	"aurorac/internal/emitter"
	"aurorac/internal/hir"
	"aurorac/internal/mir"
	"aurorac/internal/optimizer"
	"aurorac/internal/peephole"
	"aurorac/internal/regalloc"
	"aurorac/internal/scheduler"
)

// FunctionReport is one function's outcome: its optimizer pass log and
// regalloc/peephole/scheduler summaries when it succeeded, or a
// diagnostic when it didn't. A function that fails never prevents its
// siblings from appearing in the returned air.Module.
type FunctionReport struct {
	Name         string
	PassResults  []optimizer.PassResult
	SpillBytes   int64
	Scheduled    int
	Peepholes    int
	Err          *diagnostics.CompilerError
}

// Driver runs the pipeline with a fixed configuration.
type Driver struct {
	cfg     config.Config
	workers int
}

// New returns a Driver bounded by runtime.NumCPU goroutines, the
// hand-rolled stand-in for an x/sync semaphore noted in DESIGN.md —
// no x/sync dependency is wired anywhere else in this module, so a
// buffered channel does the same job without adding one just for this.
func New(cfg config.Config) *Driver {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Driver{cfg: cfg, workers: workers}
}

func levelFromConfig(l config.OptLevel) optimizer.OptLevel {
	switch l {
	case config.OptNone:
		return optimizer.O0
	case config.OptBasic:
		return optimizer.O1
	case config.OptAggressive:
		return optimizer.O3
	default:
		return optimizer.O2
	}
}

// buildResult is one function's private pipeline state, threaded from
// the MIR/optimize stage to the AIR stage without any shared mutable
// state between goroutines.
type buildResult struct {
	name string
	fn   *mir.Function
	pass []optimizer.PassResult
	err  *diagnostics.CompilerError
}

// CompileModule runs every function in mod through the full pipeline
// and returns the assembled AIR module (successful functions only)
// plus one FunctionReport per attempted function, in mod's original
// order.
func (d *Driver) CompileModule(mod *hir.Module) (*air.Module, []FunctionReport) {
	built := d.buildAndOptimize(mod.Functions)

	var okFns []*mir.Function
	reports := make([]FunctionReport, len(built))
	index := make(map[string]int, len(built))
	for i, b := range built {
		reports[i] = FunctionReport{Name: b.name, PassResults: b.pass, Err: b.err}
		index[b.name] = i
		if b.err == nil {
			okFns = append(okFns, b.fn)
		}
	}

	mirMod := &mir.Module{Name: mod.Name, Functions: okFns}
	airMod := emitter.EmitModule(mirMod)

	d.backend(airMod, reports, index)
	return airMod, reports
}

// buildAndOptimize lowers and optimizes every function concurrently,
// bounded by d.workers, and isolates failures per function.
func (d *Driver) buildAndOptimize(fns []*hir.Function) []*buildResult {
	results := make([]*buildResult, len(fns))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	level := levelFromConfig(d.cfg.OptLevel)
	for i, fn := range fns {
		i, fn := i, fn
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = buildOne(fn, level)
		}()
	}
	wg.Wait()
	return results
}

func buildOne(fn *hir.Function, level optimizer.OptLevel) (result *buildResult) {
	result = &buildResult{name: fn.Name}
	defer func() {
		if r := recover(); r != nil {
			result.fn = nil
			result.err = &diagnostics.CompilerError{
				Level:   diagnostics.Error,
				Code:    diagnostics.ErrInvariantViolation,
				Message: fmt.Sprintf("panic building %s: %v", fn.Name, r),
				Pos:     diagnostics.Position{Function: fn.Name},
			}
		}
	}()

	mf := mir.BuildFunction(fn)
	pipeline := optimizer.NewPipeline(level)
	result.pass = pipeline.Run(mf)
	result.fn = mf
	return result
}

// backend runs AIR emission's three remaining stages (register
// allocation, peephole rewriting, scheduling) concurrently per
// function, recording each function's outcome into reports by name.
func (d *Driver) backend(mod *air.Module, reports []FunctionReport, index map[string]int) {
	profile := scheduler.ProfileByName(d.cfg.CPUProfile)
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, fn := range mod.Functions {
		fn := fn
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			spillBytes, scheduled, peepholes, err := runBackend(fn, profile)

			mu.Lock()
			defer mu.Unlock()
			if i, ok := index[fn.Name]; ok {
				reports[i].SpillBytes = spillBytes
				reports[i].Scheduled = scheduled
				reports[i].Peepholes = peepholes
				if err != nil {
					reports[i].Err = err
				}
			}
		}()
	}
	wg.Wait()
}

func runBackend(fn *air.Function, profile scheduler.CPUProfile) (spillBytes int64, scheduled, peepholes int, cerr *diagnostics.CompilerError) {
	defer func() {
		if r := recover(); r != nil {
			cerr = &diagnostics.CompilerError{
				Level:   diagnostics.Error,
				Code:    diagnostics.ErrUnresolvedVReg,
				Message: fmt.Sprintf("panic in backend for %s: %v", fn.Name, r),
				Pos:     diagnostics.Position{Function: fn.Name},
			}
		}
	}()

	allocResult := regalloc.Allocate(fn)

	opt := &peephole.Optimizer{}
	opt.Optimize(fn)

	sched := scheduler.New(profile)
	sched.Schedule(fn)

	return allocResult.SpillBytes, sched.ScheduledCount(), opt.OptimizationsApplied(), nil
}
