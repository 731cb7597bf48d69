// Package server implements the mk language server.
package server

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/pkg/eval"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "mk-lsp"

// vmPrefix marks diagnostics about programs the bytecode VM cannot run.
const vmPrefix = "vm: "

var log = commonlog.GetLogger("mk.server")

var keywordDocs = map[string]string{
	"fn":     "Function literal: `fn(a, b) { a + b }`. Functions close over the environment they are created in.",
	"let":    "Binds a name: `let x = 1;`. Top-level lets occupy a VM global slot; rebinding allocates a fresh one.",
	"true":   "Boolean literal.",
	"false":  "Boolean literal.",
	"if":     "Conditional expression: `if (c) { a } else { b }`. Yields null when the taken branch produces no value.",
	"else":   "Alternative branch of an `if` expression.",
	"return": "Returns from the enclosing function, or ends the program at top level.",
}

// LspServer serves editor features over LSP. Document state lives in a
// Workspace owned by a Worker goroutine.
type LspServer struct {
	worker *Worker

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new language server.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace()),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.worker.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing", "version", s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("shutting down")
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Debugf("open %s", params.TextDocument.URI)
	return s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		return s.update(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	if _, err := s.worker.Do(func(ws *Workspace) interface{} {
		ws.Close(string(uri))
		return nil
	}); err != nil {
		return err
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	res, err := s.worker.Do(func(ws *Workspace) interface{} {
		return diagnostics(ws.Update(string(uri), text))
	})
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return err
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: res.([]protocol.Diagnostic),
	})
	return nil
}

// withDocument runs fn against the analysis of uri on the worker.
func (s *LspServer) withDocument(uri protocol.DocumentUri, fn func(*Analysis) interface{}) (interface{}, error) {
	return s.worker.Do(func(ws *Workspace) interface{} {
		a, ok := ws.Get(string(uri))
		if !ok {
			return nil
		}
		return fn(a)
	})
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	res, err := s.withDocument(params.TextDocument.URI, func(a *Analysis) interface{} {
		prefix := extractPrefix(a.Text, params.Position)
		if prefix == "" {
			return nil
		}
		return complete(a, prefix, int(params.Position.Line)+1)
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	res, err := s.withDocument(params.TextDocument.URI, func(a *Analysis) interface{} {
		word := extractWord(a.Text, params.Position)
		if word == "" {
			return nil
		}
		return hover(a, word, int(params.Position.Line)+1)
	})
	if err != nil {
		return nil, err
	}
	h, _ := res.(*protocol.Hover)
	return h, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	res, err := s.withDocument(uri, func(a *Analysis) interface{} {
		word := extractWord(a.Text, params.Position)
		if word == "" {
			return nil
		}
		return definition(uri, a, word, int(params.Position.Line)+1)
	})
	if err != nil {
		return nil, err
	}
	if locs, ok := res.([]protocol.Location); ok && len(locs) > 0 {
		return locs, nil
	}
	return nil, nil
}

// --- Analysis-backed logic (called on worker goroutine) ---

func diagnostics(a *Analysis) []protocol.Diagnostic {
	source := lspName
	diags := []protocol.Diagnostic{}
	for _, pe := range a.ParseErrors {
		severity := protocol.DiagnosticSeverityError
		diags = append(diags, protocol.Diagnostic{
			Range:    pointRange(pe.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  pe.Msg,
		})
	}
	if a.CompileErr != nil {
		severity := protocol.DiagnosticSeverityInformation
		diags = append(diags, protocol.Diagnostic{
			Range:    pointRange(a.CompileErr.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  vmPrefix + a.CompileErr.Msg,
		})
	}
	return diags
}

func complete(a *Analysis, prefix string, line int) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		labelCopy := label
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &labelCopy,
		})
	}

	keywords := compiler.Keywords()
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}
	for _, b := range eval.Builtins() {
		add(b.Name, protocol.CompletionItemKindFunction, b.Signature)
	}

	seen := make(map[string]bool)
	for _, b := range a.Bindings {
		if seen[b.Name] || b.Pos.Line > line {
			continue
		}
		seen[b.Name] = true
		add(b.Name, protocol.CompletionItemKindVariable, b.Kind+" "+b.Value)
	}

	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(a *Analysis, word string, line int) *protocol.Hover {
	var b strings.Builder
	if doc, ok := keywordDocs[word]; ok {
		fmt.Fprintf(&b, "**%s** keyword\n\n%s", word, doc)
	} else if bind, ok := a.Lookup(word, line); ok {
		fmt.Fprintf(&b, "**%s** %s", bind.Name, bind.Kind)
		if bind.Slot >= 0 {
			fmt.Fprintf(&b, ", slot %d", bind.Slot)
		}
		if bind.Kind != KindParameter {
			fmt.Fprintf(&b, "\n\nBound to %s at line %d", bind.Value, bind.Pos.Line)
		}
	} else if info, ok := eval.LookupBuiltin(word); ok {
		fmt.Fprintf(&b, "`%s` built-in\n\n%s", info.Signature, info.Doc)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func definition(uri protocol.DocumentUri, a *Analysis, word string, line int) []protocol.Location {
	bind, ok := a.Lookup(word, line)
	if !ok {
		return nil
	}
	start := toPosition(bind.Pos)
	end := start
	end.Character += protocol.UInteger(len(bind.Name))
	return []protocol.Location{{
		URI:   uri,
		Range: protocol.Range{Start: start, End: end},
	}}
}

// --- Position helpers ---

// toPosition converts a 1-based source position to a 0-based LSP one.
func toPosition(p compiler.Position) protocol.Position {
	var pos protocol.Position
	if p.Line > 0 {
		pos.Line = protocol.UInteger(p.Line - 1)
	}
	if p.Column > 0 {
		pos.Character = protocol.UInteger(p.Column - 1)
	}
	return pos
}

func pointRange(p compiler.Position) protocol.Range {
	start := toPosition(p)
	end := start
	end.Character++
	return protocol.Range{Start: start, End: end}
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
