package profiles

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile_EmbeddedDefault(t *testing.T) {
	p, err := LoadProfile("default")
	require.NoError(t, err)

	assert.Equal(t, "default", p.Name)
	assert.Equal(t, 0.1, p.Controller.ProximityThreshold)
	assert.Equal(t, int64(42), p.Sim.Seed)
	assert.Equal(t, 2, p.Sim.LatencyFrames)
	assert.Equal(t, 30, p.Sim.RelocalizeFrames)
	assert.Equal(t, 8.0, p.Room.Width)
	assert.Equal(t, "anchors.yaml", p.Store.Path)

	cfg := p.Sim.Config()
	assert.Equal(t, 750*time.Millisecond, cfg.StoreDelay)
	assert.Equal(t, 0.1, p.Controller.Config().ProximityThreshold)
}

func TestLoadProfile_EmbeddedStress(t *testing.T) {
	p, err := LoadProfile("stress")
	require.NoError(t, err)
	assert.Equal(t, "stress", p.Name)
	assert.Equal(t, 8, p.Sim.LatencyFrames)
}

func TestLoadProfile_Unknown(t *testing.T) {
	_, err := LoadProfile("nope")
	assert.Error(t, err)
}

func TestLoad_DiskOverridesEmbedded(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "profiles"), 0o755))
	override := "name: default\ncontroller:\n  proximity_threshold: 0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "profiles", "default.yaml"), []byte(override), 0o644))
	t.Chdir(tmp)

	p, err := LoadProfile("default")
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Controller.ProximityThreshold)

	_, ok := ModTime("default.yaml")
	assert.True(t, ok)
}

func TestLoadSpec_RejectsBadYAML(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "profiles", "bad.yaml"), []byte("{:::"), 0o644))
	t.Chdir(tmp)

	_, err := LoadSpec[Profile]("bad.yaml")
	assert.Error(t, err)
}
