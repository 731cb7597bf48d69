package server

import (
	"errors"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "let counter", protocol.Position{Line: 0, Character: 11}, "counter"},
		{"at start", "pri", protocol.Position{Line: 0, Character: 3}, "pri"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nle", protocol.Position{Line: 2, Character: 2}, "le"},
		{"after operator", "x + fir", protocol.Position{Line: 0, Character: 7}, "fir"},
		{"inside call", "len(arr", protocol.Position{Line: 0, Character: 7}, "arr"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"column past end", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractPrefix(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractPrefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"at end", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nlet x", protocol.Position{Line: 1, Character: 1}, "let"},
		{"underscore", "my_var", protocol.Position{Line: 0, Character: 3}, "my_var"},
		{"operator", "a + b", protocol.Position{Line: 0, Character: 3}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractWord(tc.text, tc.pos); got != tc.want {
				t.Errorf("extractWord = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Errorf("boolPtr(true) = %v", p)
	}
	if p := boolPtr(false); p == nil || *p {
		t.Errorf("boolPtr(false) = %v", p)
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

const sample = `let a = 1;
let add = fn(x, y) { let sum = x + y; sum };
if (a > 0) { let b = 2; }
let a = add(a, 3);
`

func TestAnalyzeBindings(t *testing.T) {
	a := Analyze(sample)
	if len(a.ParseErrors) != 0 {
		t.Fatalf("unexpected parse errors: %v", a.ParseErrors)
	}

	want := []Binding{
		{Name: "a", Kind: KindGlobal, Slot: 0, Value: "integer"},
		{Name: "x", Kind: KindParameter, Slot: -1},
		{Name: "y", Kind: KindParameter, Slot: -1},
		{Name: "sum", Kind: KindLocal, Slot: -1, Value: "expression"},
		{Name: "add", Kind: KindGlobal, Slot: 1, Value: "function"},
		{Name: "b", Kind: KindGlobal, Slot: 2, Value: "integer"},
		{Name: "a", Kind: KindGlobal, Slot: 3, Value: "expression"},
	}
	if len(a.Bindings) != len(want) {
		t.Fatalf("got %d bindings, want %d: %+v", len(a.Bindings), len(want), a.Bindings)
	}
	for i, w := range want {
		got := a.Bindings[i]
		got.Pos = w.Pos
		if got != w {
			t.Errorf("binding %d = %+v, want %+v", i, a.Bindings[i], w)
		}
	}
	if p := a.Bindings[4].Pos; p.Line != 2 || p.Column != 5 {
		t.Errorf("add declared at %s, want 2:5", p)
	}
}

func TestAnalyzeLookup(t *testing.T) {
	a := Analyze(sample)
	tests := []struct {
		name string
		line int
		ok   bool
		slot int
	}{
		{"a", 1, true, 0},
		{"a", 3, true, 0},
		{"a", 4, true, 3},
		{"a", 9, true, 3},
		{"b", 2, false, 0},
		{"b", 3, true, 2},
		{"missing", 9, false, 0},
	}
	for _, tc := range tests {
		b, ok := a.Lookup(tc.name, tc.line)
		if ok != tc.ok || (ok && b.Slot != tc.slot) {
			t.Errorf("Lookup(%s, %d) = %+v, %v", tc.name, tc.line, b, ok)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		severity protocol.DiagnosticSeverity
		contains string
		line     protocol.UInteger
	}{
		{"parse error", "let = 5;", protocol.DiagnosticSeverityError, "expected IDENT", 0},
		{"vm rejects functions", "let ok = 1;\nlet f = fn(x) { x };", protocol.DiagnosticSeverityInformation, vmPrefix + "unsupported node FunctionLiteral", 1},
		{"unresolved", "1 +\n  missing", protocol.DiagnosticSeverityInformation, vmPrefix + `cannot resolve symbol "missing"`, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			diags := diagnostics(Analyze(tc.text))
			if len(diags) == 0 {
				t.Fatalf("no diagnostics for %q", tc.text)
			}
			d := diags[0]
			if d.Severity == nil || *d.Severity != tc.severity {
				t.Errorf("severity = %v, want %v", d.Severity, tc.severity)
			}
			if !strings.Contains(d.Message, tc.contains) {
				t.Errorf("message = %q, want it to contain %q", d.Message, tc.contains)
			}
			if d.Range.Start.Line != tc.line {
				t.Errorf("line = %d, want %d", d.Range.Start.Line, tc.line)
			}
		})
	}

	if diags := diagnostics(Analyze("let x = 1; x + 2")); len(diags) != 0 {
		t.Errorf("clean program produced %v", diags)
	}
}

// ---------------------------------------------------------------------------
// Language features
// ---------------------------------------------------------------------------

func completionLabels(items []protocol.CompletionItem) []string {
	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = it.Label
	}
	return labels
}

func TestComplete(t *testing.T) {
	a := Analyze(sample)

	items := complete(a, "re", 5)
	if got := strings.Join(completionLabels(items), ","); got != "return,rest" {
		t.Errorf("complete(re) = %s", got)
	}
	for _, it := range items {
		if it.Label == "return" && (it.Kind == nil || *it.Kind != protocol.CompletionItemKindKeyword) {
			t.Errorf("return should be a keyword item")
		}
		if it.Label == "rest" && (it.Kind == nil || *it.Kind != protocol.CompletionItemKindFunction) {
			t.Errorf("rest should be a function item")
		}
	}

	items = complete(a, "a", 5)
	if got := strings.Join(completionLabels(items), ","); got != "a,add" {
		t.Errorf("complete(a) = %s, want a,add", got)
	}

	items = complete(a, "b", 1)
	if len(items) != 0 {
		t.Errorf("complete(b) before its declaration = %v", completionLabels(items))
	}
}

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

func TestHover(t *testing.T) {
	a := Analyze(sample)
	tests := []struct {
		word string
		line int
		want string
	}{
		{"add", 4, "**add** global, slot 1"},
		{"add", 4, "Bound to function at line 2"},
		{"a", 5, "slot 3"},
		{"x", 2, "**x** parameter"},
		{"let", 1, "**let** keyword"},
		{"push", 1, "`push(arr, x)` built-in"},
	}
	for _, tc := range tests {
		if got := hoverText(t, hover(a, tc.word, tc.line)); !strings.Contains(got, tc.want) {
			t.Errorf("hover(%s, %d) = %q, want it to contain %q", tc.word, tc.line, got, tc.want)
		}
	}

	if h := hover(a, "nothing_here", 5); h != nil {
		t.Errorf("hover for unknown word = %+v", h)
	}
}

func TestDefinition(t *testing.T) {
	a := Analyze(sample)
	uri := protocol.DocumentUri("file:///sample.mk")

	locs := definition(uri, a, "a", 5)
	if len(locs) != 1 {
		t.Fatalf("definition(a) = %v", locs)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 3, Character: 4},
		End:   protocol.Position{Line: 3, Character: 5},
	}
	if locs[0].URI != uri || locs[0].Range != want {
		t.Errorf("definition(a) = %+v, want %+v", locs[0], want)
	}

	locs = definition(uri, a, "a", 2)
	if len(locs) != 1 || locs[0].Range.Start.Line != 0 {
		t.Errorf("definition(a) on line 2 = %+v, want line 0", locs)
	}

	if locs := definition(uri, a, "len", 5); locs != nil {
		t.Errorf("definition of a built-in = %v", locs)
	}
}

// ---------------------------------------------------------------------------
// Worker and workspace
// ---------------------------------------------------------------------------

func TestWorkerWorkspace(t *testing.T) {
	w := NewWorker(NewWorkspace())
	defer w.Stop()

	res, err := w.Do(func(ws *Workspace) interface{} {
		ws.Update("file:///b.mk", "let b = 1;")
		return ws.Update("file:///a.mk", "let a = ;")
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if a := res.(*Analysis); len(a.ParseErrors) == 0 {
		t.Errorf("expected parse errors for a.mk")
	}

	res, _ = w.Do(func(ws *Workspace) interface{} {
		ws.Close("file:///b.mk")
		return strings.Join(ws.URIs(), ",")
	})
	if res != "file:///a.mk" {
		t.Errorf("URIs after close = %v", res)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker(NewWorkspace())
	defer w.Stop()

	_, err := w.Do(func(ws *Workspace) interface{} {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want recovered panic", err)
	}

	res, err := w.Do(func(ws *Workspace) interface{} { return 7 })
	if err != nil || res != 7 {
		t.Errorf("worker unusable after panic: %v, %v", res, err)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker(NewWorkspace())
	w.Stop()
	w.Stop()

	if _, err := w.Do(func(ws *Workspace) interface{} { return nil }); !errors.Is(err, errWorkerStopped) {
		t.Errorf("Do after Stop: err = %v", err)
	}
}
