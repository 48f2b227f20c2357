// Package store holds durable catalogs of persisted anchors shared by
// subsystem implementations.
package store

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/milk9111/anchortap/common"
)

// Entry is one saved anchor.
type Entry struct {
	Position common.Vec3 `yaml:"position"`
	Forward  common.Vec3 `yaml:"forward"`
	SavedAt  time.Time   `yaml:"saved_at"`
}

// Catalog is name-keyed storage of saved anchors. Implementations stamp
// SavedAt themselves; Put rejects names already present and Delete rejects
// names that are not.
type Catalog interface {
	Names() []string
	Get(name string) (Entry, bool)
	Put(name string, pos, forward common.Vec3) error
	Delete(name string) error
}

// Memory is an in-process catalog for tests and scripted scenarios.
type Memory struct {
	clock   clockwork.Clock
	entries map[string]Entry
}

// NewMemory returns an empty in-memory catalog. A nil clock uses the wall
// clock.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock, entries: make(map[string]Entry)}
}

func (m *Memory) Names() []string {
	return sortedNames(m.entries)
}

func (m *Memory) Get(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

func (m *Memory) Put(name string, pos, forward common.Vec3) error {
	if _, taken := m.entries[name]; taken {
		return errNameExists(name)
	}
	m.entries[name] = Entry{Position: pos, Forward: forward, SavedAt: m.clock.Now().UTC()}
	return nil
}

func (m *Memory) Delete(name string) error {
	if _, ok := m.entries[name]; !ok {
		return errUnknownName(name)
	}
	delete(m.entries, name)
	return nil
}

func sortedNames(entries map[string]Entry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
