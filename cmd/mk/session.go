package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/manifest"
	"github.com/chazu/mk/pkg/bytecode"
	"github.com/chazu/mk/pkg/eval"
	"github.com/chazu/mk/pkg/object"
)

// session evaluates successive inputs, keeping bindings alive between them.
// The VM engine shares one symbol table and one globals slice across runs;
// the eval engine keeps one interpreter.
type session struct {
	engine string
	disasm bool
	vmConf manifest.VM
	out    io.Writer

	symbols *bytecode.SymbolTable
	globals []object.Object
	interp  *eval.Interpreter
}

func newSession(m *manifest.Manifest, out io.Writer) *session {
	return &session{
		engine:  m.REPL.Engine,
		vmConf:  m.VM,
		out:     out,
		symbols: bytecode.NewSymbolTable(),
		globals: bytecode.NewGlobals(m.VM.GlobalsSize),
		interp:  eval.New(out),
	}
}

func (s *session) setEngine(name string) error {
	switch name {
	case manifest.EngineVM, manifest.EngineEval:
		s.engine = name
		return nil
	}
	return fmt.Errorf("unknown engine %q (want %s or %s)", name, manifest.EngineVM, manifest.EngineEval)
}

// run parses and evaluates src with the current engine.
func (s *session) run(src string) (object.Object, error) {
	program, err := compiler.Parse(src)
	if err != nil {
		return nil, err
	}
	if s.engine == manifest.EngineEval {
		return s.interp.Eval(program)
	}

	// Names defined by a failed input must not resolve later.
	symbols := s.symbols.Clone()
	bc, err := bytecode.NewCompilerWithState(symbols).Compile(program)
	if err != nil {
		return nil, err
	}
	v, err := s.execute(bc)
	if err != nil {
		return nil, err
	}
	s.symbols = symbols
	return v, nil
}

func (s *session) execute(bc *bytecode.Bytecode) (object.Object, error) {
	if s.disasm {
		fmt.Fprint(s.out, bytecode.Disassemble(bc))
	}
	vm := bytecode.NewWithGlobals(bc, s.globals,
		bytecode.WithStackSize(s.vmConf.StackSize),
		bytecode.WithTrace(s.vmConf.Trace),
	)
	if err := vm.Run(); err != nil {
		return nil, err
	}
	return vm.Result(), nil
}

// compileImage compiles src for the VM and writes it to path.
func (s *session) compileImage(src, path string) error {
	program, err := compiler.Parse(src)
	if err != nil {
		return err
	}
	symbols := s.symbols.Clone()
	bc, err := bytecode.NewCompilerWithState(symbols).Compile(program)
	if err != nil {
		return err
	}
	if s.disasm {
		fmt.Fprint(s.out, bytecode.Disassemble(bc))
	}
	if err := bytecode.WriteImageFile(path, bc, symbols, src); err != nil {
		return err
	}
	s.symbols = symbols
	return nil
}

// runImage loads a compiled image and executes it on the VM. The image's
// globals replace the session's symbol table.
func (s *session) runImage(path string) (object.Object, error) {
	img, err := bytecode.ReadImageFile(path)
	if err != nil {
		return nil, err
	}
	bc, err := img.Bytecode()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if len(img.Globals) > len(s.globals) {
		return nil, fmt.Errorf("loading %s: %d globals exceed the configured %d", path, len(img.Globals), len(s.globals))
	}
	v, err := s.execute(bc)
	if err != nil {
		return nil, err
	}
	s.symbols = img.SymbolTable()
	return v, nil
}

// globalLines describes the live bindings of the current engine.
func (s *session) globalLines() []string {
	var lines []string
	if s.engine == manifest.EngineEval {
		for _, b := range s.interp.Globals() {
			lines = append(lines, fmt.Sprintf("%s = %s", b.Name, b.Value.Inspect()))
		}
		return lines
	}

	// Later definitions of a name shadow earlier slots.
	latest := make(map[string]int)
	for _, sym := range s.symbols.Symbols() {
		latest[sym.Name] = sym.Index
	}
	for _, sym := range s.symbols.Symbols() {
		if latest[sym.Name] != sym.Index || sym.Index >= len(s.globals) {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] %s = %s", sym.Index, sym.Name, s.globals[sym.Index].Inspect()))
	}
	return lines
}

// describeError renders err for the terminal, one parse error per line.
func describeError(err error) string {
	var pe compiler.ParseErrors
	if errors.As(err, &pe) {
		return "parse error:\n  " + strings.ReplaceAll(pe.Error(), "\n", "\n  ")
	}
	return err.Error()
}
