// Package registry maps command names to factories. Entries come from Go
// built-ins registered at init time and from macro scripts in a
// directory; Reload re-scans the directory and swaps the whole table in
// one step, so a running command never sees its definition change.
package registry

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"pokecon/internal/command"
	"pokecon/internal/script"
)

// BUILTIN is the Source of entries registered from Go code.
const BUILTIN = "builtin"

// Factory returns a fresh definition for every command instance.
type Factory func() command.Definition

// Entry is one registered command.
type Entry struct {
	Name   string
	Kind   command.Kind
	Source string // BUILTIN or the script path
	Sum    uint32 // content fingerprint, zero for built-ins
	New    Factory
}

// Command instantiates the entry with the given capabilities.
func (e Entry) Command(opts ...command.Option) (*command.Command, error) {
	return command.New(e.New(), opts...)
}

var (
	builtinMu sync.Mutex
	builtins  = map[string]Factory{}
)

// Register adds a built-in command. It is meant for init functions and
// panics on a duplicate name.
func Register(f Factory) {
	def := f()
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if _, dup := builtins[def.Name]; dup {
		panic("registry: command registered twice: " + def.Name)
	}
	builtins[def.Name] = f
}

// Registry is a name -> Entry table safe for concurrent readers.
type Registry struct {
	dir     string
	reload  sync.Mutex
	entries atomic.Pointer[map[string]Entry]
}

// New returns a registry holding the built-ins and the scripts of dir.
// An empty dir means built-ins only.
func New(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	empty := map[string]Entry{}
	r.entries.Store(&empty)
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get looks a command up by name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := (*r.entries.Load())[name]
	return e, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	m := *r.entries.Load()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns all entries sorted by name.
func (r *Registry) Entries() []Entry {
	m := *r.entries.Load()
	out := make([]Entry, 0, len(m))
	for _, n := range r.Names() {
		if e, ok := m[n]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Report tells what a Reload changed.
type Report struct {
	Loaded   []string // new names
	Reloaded []string // existing names whose script content changed
	Removed  []string
	Failed   map[string]error // script path -> parse error
}

// Reload rebuilds the table from the built-ins and the script directory
// and swaps it in. A script that fails to parse is reported and its
// previous entry, if any, is kept. A missing directory counts as empty.
func (r *Registry) Reload() (Report, error) {
	r.reload.Lock()
	defer r.reload.Unlock()

	old := *r.entries.Load()
	next := make(map[string]Entry, len(old))
	rep := Report{Failed: map[string]error{}}

	builtinMu.Lock()
	for name, f := range builtins {
		next[name] = Entry{Name: name, Kind: f().Kind, Source: BUILTIN, New: f}
	}
	builtinMu.Unlock()

	paths, err := r.scan()
	if err != nil {
		return rep, err
	}
	for _, path := range paths {
		e, err := load(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping script")
			rep.Failed[path] = err
			for name, prev := range old {
				if prev.Source == path {
					next[name] = prev
				}
			}
			continue
		}
		if other, dup := next[e.Name]; dup {
			log.Warn().Str("name", e.Name).Str("path", path).Str("other", other.Source).
				Msg("command name already taken")
			rep.Failed[path] = errors.Errorf("duplicate command name %q", e.Name)
			continue
		}
		next[e.Name] = e
	}

	for name, e := range next {
		prev, existed := old[name]
		switch {
		case !existed:
			rep.Loaded = append(rep.Loaded, name)
		case e.Source != BUILTIN && (prev.Sum != e.Sum || prev.Source != e.Source):
			rep.Reloaded = append(rep.Reloaded, name)
			log.Info().Str("name", name).Msg("reloaded")
		}
	}
	for name := range old {
		if _, ok := next[name]; !ok {
			rep.Removed = append(rep.Removed, name)
			log.Info().Str("name", name).Msg("removed")
		}
	}
	sort.Strings(rep.Loaded)
	sort.Strings(rep.Reloaded)
	sort.Strings(rep.Removed)

	r.entries.Store(&next)
	return rep, nil
}

func (r *Registry) scan() ([]string, error) {
	if r.dir == "" {
		return nil, nil
	}
	des, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		log.Warn().Str("dir", r.dir).Msg("script directory not found")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan scripts")
	}
	var paths []string
	for _, de := range des {
		if de.IsDir() || filepath.Ext(de.Name()) != script.EXT {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func load(path string) (Entry, error) {
	data, sum, err := readScript(path)
	if err != nil {
		return Entry{}, err
	}
	def, err := script.Parse(path, bytes.NewReader(data))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:   def.Name,
		Kind:   def.Kind,
		Source: path,
		Sum:    sum,
		New:    func() command.Definition { return def },
	}, nil
}
