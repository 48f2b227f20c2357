// Command simulate runs scenario scripts against the controller headlessly
// and reports the collected expectations, for checking tuning profiles
// without opening the demo window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/milk9111/anchortap/profiles"
	"github.com/milk9111/anchortap/scenario"
	"github.com/milk9111/anchortap/store"
)

func main() {
	script := flag.String("script", "", "scenario script to run (embedded name or a path on disk)")
	all := flag.Bool("all", false, "run every embedded scenario")
	profileName := flag.String("profile", "default", "profile name in profiles/ (basename, .yaml optional)")
	frames := flag.Int("frames", 0, "override the scenario's frame budget")
	seed := flag.Int64("seed", 0, "override the profile's simulation seed")
	storePath := flag.String("store", "", "back the session with a YAML store file instead of memory")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	config := zap.NewProductionConfig()
	if *verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var scripts []string
	switch {
	case *all:
		scripts = scenario.Names()
	case *script != "":
		scripts = []string{*script}
	default:
		fmt.Fprintln(os.Stderr, "usage: simulate -script <name> | -all")
		fmt.Fprintf(os.Stderr, "embedded scenarios: %s\n", strings.Join(scenario.Names(), ", "))
		os.Exit(2)
	}

	p, err := profiles.LoadProfile(strings.TrimSuffix(*profileName, ".yaml"))
	if err != nil {
		logger.Fatal("failed to load profile", zap.Error(err))
	}
	cfg := scenario.Config{
		Controller: p.Controller.Config(),
		Sim:        p.Sim.Config(),
		Frames:     *frames,
	}
	if *seed != 0 {
		cfg.Sim.Seed = *seed
	}
	if *storePath != "" {
		catalog, err := store.OpenFile(*storePath, nil)
		if err != nil {
			logger.Fatal("failed to open store", zap.Error(err))
		}
		cfg.Catalog = catalog
	}

	// Exit 1 on failed expectations, 2 on scripts that would not load or run.
	exit := 0
	passed := 0
	for _, name := range scripts {
		runner, err := scenario.NewRunner(name, cfg, logger)
		if err != nil {
			logger.Error("scenario setup failed", zap.String("script", name), zap.Error(err))
			exit = 2
			continue
		}
		res, err := runner.Run(context.Background())
		if err != nil {
			logger.Error("scenario run failed", zap.String("script", name), zap.Error(err))
			exit = 2
			continue
		}
		if res.OK() {
			passed++
			fmt.Printf("PASS %-20s %3d frames %3d checks\n", res.Script, res.Frames, res.Checks)
			continue
		}
		if exit == 0 {
			exit = 1
		}
		fmt.Printf("FAIL %-20s %3d frames %3d checks\n", res.Script, res.Frames, res.Checks)
		for _, f := range res.Failures {
			fmt.Printf("     %s\n", f)
		}
	}

	logger.Info("simulation finished",
		zap.Int("scripts", len(scripts)),
		zap.Int("passed", passed),
		zap.Int("failed", len(scripts)-passed))
	if exit != 0 {
		logger.Sync()
		os.Exit(exit)
	}
}
