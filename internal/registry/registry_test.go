package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"pokecon/internal/command"
	"pokecon/internal/script"
)

const testBuiltin = "registry test builtin"

func init() {
	Register(func() command.Definition {
		return command.Definition{Name: testBuiltin, Routine: func(s *command.Session) error { return nil }}
	})
}

func writeScript(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "mash.pcs", "name mash\nloop {\n press A\n}\n")
	writeScript(t, dir, "look.pcs", "name look\nif template x.png {\n press B\n}\n")
	writeScript(t, dir, "notes.txt", "name ignored\n")

	r, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := r.Names(), []string{"look", "mash", testBuiltin}; !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %q, want %q", got, want)
	}
	look, _ := r.Get("look")
	if look.Kind != command.ImageAware {
		t.Errorf("look kind = %v", look.Kind)
	}
	builtin, _ := r.Get(testBuiltin)
	if builtin.Source != BUILTIN || builtin.Sum != 0 {
		t.Errorf("builtin entry = %+v", builtin)
	}

	// edit one, leave one, add one
	before, _ := r.Get("mash")
	writeScript(t, dir, "mash.pcs", "name mash\nloop {\n press A 0.2\n}\n")
	writeScript(t, dir, "spin.pcs", "name spin\npress UP\n")
	rep, err := r.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rep.Reloaded, []string{"mash"}) {
		t.Errorf("reloaded = %q", rep.Reloaded)
	}
	if !reflect.DeepEqual(rep.Loaded, []string{"spin"}) {
		t.Errorf("loaded = %q", rep.Loaded)
	}
	after, _ := r.Get("mash")
	if after.Sum == before.Sum {
		t.Error("fingerprint did not change")
	}

	// an unchanged reload reports nothing
	rep, _ = r.Reload()
	if len(rep.Loaded)+len(rep.Reloaded)+len(rep.Removed) != 0 {
		t.Errorf("idle reload = %+v", rep)
	}

	os.Remove(filepath.Join(dir, "spin.pcs"))
	rep, _ = r.Reload()
	if !reflect.DeepEqual(rep.Removed, []string{"spin"}) {
		t.Errorf("removed = %q", rep.Removed)
	}
}

func TestBrokenScriptKeepsOldEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "mash.pcs", "name mash\npress A\n")
	r, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	good, _ := r.Get("mash")

	writeScript(t, dir, "mash.pcs", "name mash\nloop {\n")
	rep, err := r.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(rep.Failed[path], script.ErrSyntax) {
		t.Errorf("failed = %v", rep.Failed)
	}
	kept, ok := r.Get("mash")
	if !ok || kept.Sum != good.Sum {
		t.Errorf("broken edit replaced the working entry: %+v", kept)
	}
}

func TestDuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.pcs", "name same\npress A\n")
	dup := writeScript(t, dir, "b.pcs", "name same\npress B\n")
	shadow := writeScript(t, dir, "c.pcs", "name \""+testBuiltin+"\"\npress B\n")

	r, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := r.Get("same")
	if e.Source != filepath.Join(dir, "a.pcs") {
		t.Errorf("same comes from %s", e.Source)
	}
	b, _ := r.Get(testBuiltin)
	if b.Source != BUILTIN {
		t.Error("script replaced a builtin")
	}
	rep, _ := r.Reload()
	if rep.Failed[dup] == nil || rep.Failed[shadow] == nil {
		t.Errorf("failed = %v", rep.Failed)
	}
}

func TestMissingDir(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(testBuiltin); !ok {
		t.Error("builtins missing")
	}
}

func TestEntryCommand(t *testing.T) {
	r, _ := New("")
	e, _ := r.Get(testBuiltin)
	c, err := e.Command()
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != testBuiltin || c.IsRunning() {
		t.Errorf("command = %s running=%v", c.Name(), c.IsRunning())
	}
}

func TestFingerprint(t *testing.T) {
	// CRC-32/IEEE check value
	if got := Fingerprint([]byte("123456789")); got != 0xcbf43926 {
		t.Errorf("Fingerprint = %#x", got)
	}
	dir := t.TempDir()
	path := writeScript(t, dir, "x.pcs", "123456789")
	_, sum, err := readScript(path)
	if err != nil || sum != 0xcbf43926 {
		t.Errorf("readScript sum = %#x, %v", sum, err)
	}
}
