package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/mk/manifest"
)

func TestUnbalanced(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1 + 2", 0},
		{"if (x) {", 1},
		{"let f = fn(a) {\n  if (a) {", 2},
		{"[1, 2", 1},
		{`"{" + "("`, 0},
		{"// {\n1", 0},
		{"}", -1},
	}
	for _, tc := range tests {
		if got := unbalanced(tc.input); got != tc.want {
			t.Errorf("unbalanced(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestCompleter(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{":gl", []string{":globals"}},
		{"le", []string{"len", "let"}},
		{"let x = fi", []string{"let x = first"}},
		{"push(re", []string{"push(rest", "push(return"}},
		{"", nil},
		{"x :q", nil},
	}
	for _, tc := range tests {
		got := completer(tc.line)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Errorf("completer(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestREPLCommands(t *testing.T) {
	var out bytes.Buffer
	m := manifest.Default()
	r := &repl{s: newSession(m, &out), out: &out}

	steps := []struct {
		input string
		want  string
		quit  bool
	}{
		{":engine", "engine: vm", false},
		{":globals", "no globals", false},
		{":disasm", "disassembly on", false},
		{":disasm", "disassembly off", false},
		{":ast", "ast on", false},
		{":engine eval", "switched to eval", false},
		{":engine jit", `unknown engine "jit"`, false},
		{":nope", "unknown command :nope", false},
		{":help", ":globals", false},
		{":quit", "", true},
	}
	for _, st := range steps {
		out.Reset()
		if quit := r.command(st.input); quit != st.quit {
			t.Errorf("command(%s) quit = %v", st.input, quit)
		}
		if !strings.Contains(out.String(), st.want) {
			t.Errorf("command(%s) printed %q, want %q", st.input, out.String(), st.want)
		}
	}
}

func TestREPLEval(t *testing.T) {
	var out bytes.Buffer
	r := &repl{s: newSession(manifest.Default(), &out), out: &out}

	r.eval("let x = 2;")
	if out.Len() != 0 {
		t.Errorf("let printed %q", out.String())
	}
	r.eval("x * 21")
	if out.String() != "42\n" {
		t.Errorf("output = %q, want 42", out.String())
	}

	out.Reset()
	r.eval("x + true")
	if !strings.HasPrefix(out.String(), "Error: ") {
		t.Errorf("error output = %q", out.String())
	}

	out.Reset()
	r.showAST = true
	r.eval("1 + 2 * 3")
	if out.String() != "(1 + (2 * 3))\n7\n" {
		t.Errorf("ast output = %q", out.String())
	}
}
