package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/milk9111/anchortap/anchor"
	"github.com/milk9111/anchortap/common"
)

type fileDoc struct {
	Version int              `yaml:"version"`
	Anchors map[string]Entry `yaml:"anchors"`
}

// File is a catalog backed by a single YAML file. Every mutation rewrites the
// whole file through a temp file and rename, so a crash mid-write never
// truncates the previous snapshot.
type File struct {
	path    string
	clock   clockwork.Clock
	entries map[string]Entry
}

// OpenFile loads the catalog at path, starting empty when the file does not
// exist yet. A nil clock uses the wall clock.
func OpenFile(path string, clock clockwork.Clock) (*File, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	f := &File{path: path, clock: clock, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: unmarshal %s: %w", path, err)
	}
	for name, e := range doc.Anchors {
		f.entries[name] = e
	}
	return f, nil
}

// Path reports the file the catalog writes to.
func (f *File) Path() string {
	return f.path
}

func (f *File) Names() []string {
	return sortedNames(f.entries)
}

func (f *File) Get(name string) (Entry, bool) {
	e, ok := f.entries[name]
	return e, ok
}

func (f *File) Put(name string, pos, forward common.Vec3) error {
	if _, taken := f.entries[name]; taken {
		return errNameExists(name)
	}
	f.entries[name] = Entry{Position: pos, Forward: forward, SavedAt: f.clock.Now().UTC()}
	if err := f.save(); err != nil {
		delete(f.entries, name)
		return err
	}
	return nil
}

func (f *File) Delete(name string) error {
	e, ok := f.entries[name]
	if !ok {
		return errUnknownName(name)
	}
	delete(f.entries, name)
	if err := f.save(); err != nil {
		f.entries[name] = e
		return err
	}
	return nil
}

func (f *File) save() error {
	data, err := yaml.Marshal(fileDoc{Version: 1, Anchors: f.entries})
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", f.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("store: save %s: %w", f.path, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: save %s: %w", f.path, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: save %s: %w", f.path, err)
	}
	return nil
}

func errNameExists(name string) error {
	return fmt.Errorf("store: put %s: %w", name, anchor.ErrNameExists)
}

func errUnknownName(name string) error {
	return fmt.Errorf("store: %s: %w", name, anchor.ErrUnknownName)
}
