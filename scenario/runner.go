// Package scenario runs scripted end-to-end sessions against the controller:
// a Tengo script presses gestures, injects faults and asserts on controller
// state while the runner advances the simulated subsystem frame by frame.
// Scripts define three functions, setup(api, state), step(api, state, frame)
// and verify(api, state); an optional top-level `frames` global overrides the
// default frame count.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"go.uber.org/zap"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/sim"
	"github.com/milk9111/anchortap/store"
)

const defaultFrames = 60

const lifecycleDispatchScript = `
if __phase == "setup" {
	setup(__api, __state)
} else if __phase == "step" {
	step(__api, __state, __frame)
} else if __phase == "verify" {
	verify(__api, __state)
}
`

// Config tunes the harness a scenario runs against.
type Config struct {
	Controller anchor.Config
	Sim        sim.Config

	// Frames overrides the script's frame budget when positive.
	Frames int

	// Catalog backs the session store. Nil uses a fresh in-memory catalog.
	Catalog store.Catalog
}

// Result is the outcome of one scenario run.
type Result struct {
	Script   string
	Frames   int
	Checks   int
	Failures []string
}

func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

// Runner drives one scripted session. Not safe for concurrent use.
type Runner struct {
	name    string
	cfg     Config
	log     *zap.Logger
	catalog store.Catalog

	world *sim.World
	input *sim.Input
	ctrl  *anchor.Controller

	compiled *tengo.Compiled
	state    *tengo.Map
	engine   *tengo.ImmutableMap
	frames   int

	// failNextOpen makes the next restart's store open fail, so scripts can
	// walk the controller into Disabled and back out.
	failNextOpen bool

	ctx    context.Context
	result *Result
}

// NewRunner compiles the named script and prepares a fresh harness around the
// configured catalog, in-memory unless Config.Catalog says otherwise. A nil
// logger disables logging.
func NewRunner(script string, cfg Config, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	src, err := LoadScript(script)
	if err != nil {
		return nil, fmt.Errorf("scenario: load %s: %w", script, err)
	}

	sc := tengo.NewScript(append(src, []byte("\n"+lifecycleDispatchScript)...))
	_ = sc.Add("__phase", "")
	_ = sc.Add("__api", map[string]any{})
	_ = sc.Add("__state", map[string]any{})
	_ = sc.Add("__frame", 0)
	sc.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := sc.Compile()
	if err != nil {
		return nil, fmt.Errorf("scenario: compile %s: %w", script, err)
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = store.NewMemory(nil)
	}

	r := &Runner{
		name:     shortName(script),
		cfg:      cfg,
		log:      log,
		catalog:  catalog,
		compiled: compiled,
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		frames:   defaultFrames,
	}
	r.engine = buildEngine(r)

	// A noop run materializes top-level globals such as `frames`.
	if err := r.runPhase("noop", 0); err != nil {
		return nil, fmt.Errorf("scenario: prime %s: %w", script, err)
	}
	if compiled.IsDefined("frames") {
		if n := compiled.Get("frames").Int(); n > 0 {
			r.frames = n
		}
	}
	if cfg.Frames > 0 {
		r.frames = cfg.Frames
	}
	return r, nil
}

// Run executes setup, the frame loop and verify, and reports the collected
// expectations.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.ctx = ctx
	r.result = &Result{Script: r.name, Frames: r.frames}

	r.buildHarness()
	defer func() {
		if r.ctrl != nil {
			r.ctrl.Close()
		}
	}()
	if err := r.awaitReady(); err != nil {
		return nil, err
	}

	if err := r.runPhase("setup", 0); err != nil {
		return nil, fmt.Errorf("scenario: %s setup: %w", r.name, err)
	}

	for f := 0; f < r.frames; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.runPhase("step", f); err != nil {
			return nil, fmt.Errorf("scenario: %s frame %d: %w", r.name, f, err)
		}
		r.advance()
	}

	if err := r.runPhase("verify", 0); err != nil {
		return nil, fmt.Errorf("scenario: %s verify: %w", r.name, err)
	}

	r.log.Info("scenario finished",
		zap.String("script", r.name),
		zap.Int("frames", r.frames),
		zap.Int("checks", r.result.Checks),
		zap.Int("failures", len(r.result.Failures)))
	return r.result, nil
}

func (r *Runner) buildHarness() {
	simCfg := r.cfg.Sim
	if r.failNextOpen {
		simCfg.FailStoreOpen = true
		r.failNextOpen = false
	}
	r.world = sim.New(r.catalog, nil, simCfg, r.log)
	r.input = sim.NewInput()
	r.ctrl = anchor.New(r.world, r.input, nil, r.cfg.Controller, r.log)
	r.ctrl.Start(r.ctx)
}

// restart tears the session down and brings a fresh subsystem up over the
// same catalog, the way a new app session would. An armed fail_store_open
// leaves the new session Disabled rather than failing the run.
func (r *Runner) restart() error {
	r.ctrl.Close()
	r.buildHarness()
	return r.awaitSettled()
}

// awaitSettled pumps frames until the store open resolves either way.
func (r *Runner) awaitSettled() error {
	deadline := time.Now().Add(5 * time.Second)
	for r.ctrl.Phase() == anchor.AwaitingStore {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errors.New("scenario: controller stuck awaiting store")
		}
		r.world.Step()
		r.ctrl.Tick()
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (r *Runner) awaitReady() error {
	if err := r.awaitSettled(); err != nil {
		return err
	}
	if p := r.ctrl.Phase(); p != anchor.Ready {
		return fmt.Errorf("scenario: controller %s after startup", p)
	}
	return nil
}

// advance moves the world and controller one frame, then releases one-frame
// taps so the next sample sees a clean falling edge.
func (r *Runner) advance() {
	r.world.Step()
	r.ctrl.Tick()
	r.input.EndFrame()
}

func (r *Runner) runPhase(phase string, frame int) error {
	if err := r.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := r.compiled.Set("__api", r.engine); err != nil {
		return err
	}
	if err := r.compiled.Set("__state", r.state); err != nil {
		return err
	}
	if err := r.compiled.Set("__frame", frame); err != nil {
		return err
	}
	return r.compiled.Run()
}

func (r *Runner) expect(ok bool, msg string) {
	r.result.Checks++
	if ok {
		return
	}
	if msg == "" {
		msg = fmt.Sprintf("check %d failed", r.result.Checks)
	}
	r.result.Failures = append(r.result.Failures, msg)
	r.log.Warn("scenario expectation failed",
		zap.String("script", r.name),
		zap.String("check", msg))
}

func shortName(script string) string {
	s := cleanScriptPath(script)
	s = strings.TrimPrefix(s, "scripts/")
	return strings.TrimSuffix(s, ".tengo")
}
