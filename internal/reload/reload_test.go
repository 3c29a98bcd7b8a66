package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v14"
)

const minimalWat = `(module (memory (export "memory") 1) (func (export "_start")))`

func mustCompileFixture(t *testing.T) *wasmtime.Module {
	t.Helper()
	engine := wasmtime.NewEngine()
	wasm, err := wasmtime.Wat2Wasm(minimalWat)
	if err != nil {
		t.Fatalf("wat2wasm: %v", err)
	}
	mod, err := wasmtime.NewModule(engine, wasm)
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	return mod
}

func TestListCandidatesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.wasm")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := ListCandidates(path)
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(paths) != 1 || paths[0] != path {
		t.Fatalf("ListCandidates(file) = %v, want [%s]", paths, path)
	}
}

func TestListCandidatesNewestFirst(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "a.wasm")
	newer := filepath.Join(dir, "b.wasm")
	ignored := filepath.Join(dir, "c.txt")

	for _, p := range []string{older, ignored} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(newer, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := ListCandidates(dir)
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("ListCandidates(dir) returned %d entries, want 2 (non-.wasm excluded): %v", len(paths), paths)
	}
	if paths[0] != newer {
		t.Fatalf("ListCandidates(dir)[0] = %s, want newest (%s)", paths[0], newer)
	}
}

func TestWatcherLoadBestSkipsFailingCandidates(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "a.wasm")
	bad := filepath.Join(dir, "b.wasm")
	if err := os.WriteFile(good, []byte("also not wasm, but compile stub accepts it"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(bad, []byte("not wasm"), 0644); err != nil {
		t.Fatal(err)
	}

	fixture := mustCompileFixture(t)

	var attempted []string
	compile := func(path string) (*wasmtime.Module, error) {
		attempted = append(attempted, path)
		if path == bad {
			return nil, fmt.Errorf("simulated compile failure")
		}
		return fixture, nil
	}

	w := New(dir, compile, nil)
	mod, err := w.LoadBest()
	if err != nil {
		t.Fatalf("LoadBest: %v", err)
	}
	if mod != fixture {
		t.Fatalf("LoadBest returned unexpected module")
	}
	if len(attempted) != 2 || attempted[0] != bad || attempted[1] != good {
		t.Fatalf("expected newest-first attempt order [bad, good], got %v", attempted)
	}
}
