package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/mk/manifest"
)

func TestDemoProject(t *testing.T) {
	m, err := manifest.Load(filepath.Join("..", "..", "examples", "demo"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	entry := m.EntryPath()
	if entry == "" {
		t.Fatalf("demo project has no entry file")
	}

	for _, engine := range []string{manifest.EngineVM, manifest.EngineEval} {
		t.Run(engine, func(t *testing.T) {
			var out bytes.Buffer
			s := newSession(m, &out)
			if err := s.setEngine(engine); err != nil {
				t.Fatal(err)
			}
			if err := runFile(s, entry, ""); err != nil {
				t.Fatalf("runFile failed: %v", err)
			}
			if out.String() != "42\n" {
				t.Errorf("output = %q, want 42", out.String())
			}
		})
	}
}

func TestClosuresExample(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "examples", "closures.mk"))
	if err != nil {
		t.Fatal(err)
	}

	s, out := newTestSession(manifest.EngineEval)
	if got := mustRun(t, s, string(src)); got != "77" {
		t.Errorf("result = %s, want 77", got)
	}
	if out.String() != "total age:\n77\n" {
		t.Errorf("output = %q", out.String())
	}

	vm, _ := newTestSession(manifest.EngineVM)
	if _, err := vm.run(string(src)); err == nil {
		t.Errorf("vm engine accepted function literals")
	}
}
