// Package profiles loads named tuning profiles for the controller, the
// simulated subsystem and the demo room from YAML, embedded by default and
// overridable from a profiles/ directory on disk.
package profiles

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/sim"
)

type Profile struct {
	Name       string         `yaml:"name"`
	Controller ControllerSpec `yaml:"controller"`
	Sim        SimSpec        `yaml:"sim"`
	Room       RoomSpec       `yaml:"room"`
	Store      StoreSpec      `yaml:"store"`
}

type ControllerSpec struct {
	ProximityThreshold float64 `yaml:"proximity_threshold"`
	NameAttempts       int     `yaml:"name_attempts"`
}

type SimSpec struct {
	Seed             int64   `yaml:"seed"`
	LatencyFrames    int     `yaml:"latency_frames"`
	RelocalizeFrames int     `yaml:"relocalize_frames"`
	Drift            float64 `yaml:"drift"`
	FlickerChance    float64 `yaml:"flicker_chance"`
	RecoverChance    float64 `yaml:"recover_chance"`
	CreateFailChance float64 `yaml:"create_fail_chance"`
	StoreDelayMS     int     `yaml:"store_delay_ms"`
}

type RoomSpec struct {
	Width       float64 `yaml:"width"`
	Depth       float64 `yaml:"depth"`
	ViewerSpeed float64 `yaml:"viewer_speed"`
}

type StoreSpec struct {
	Path string `yaml:"path"`
}

// Config converts the loaded values to controller configuration.
func (s ControllerSpec) Config() anchor.Config {
	return anchor.Config{
		ProximityThreshold: s.ProximityThreshold,
		NameAttempts:       s.NameAttempts,
	}
}

// Config converts the loaded values to simulation configuration.
func (s SimSpec) Config() sim.Config {
	return sim.Config{
		Seed:             s.Seed,
		LatencyFrames:    s.LatencyFrames,
		RelocalizeFrames: s.RelocalizeFrames,
		Drift:            s.Drift,
		FlickerChance:    s.FlickerChance,
		RecoverChance:    s.RecoverChance,
		CreateFailChance: s.CreateFailChance,
		StoreDelay:       time.Duration(s.StoreDelayMS) * time.Millisecond,
	}
}

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("profiles: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("profiles: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// LoadProfile reads the profile with the given short name, for example
// "default" for default.yaml.
func LoadProfile(name string) (*Profile, error) {
	p, err := LoadSpec[Profile](name + ".yaml")
	if err != nil {
		return nil, err
	}
	return &p, nil
}
