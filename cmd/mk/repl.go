package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/mk/compiler"
	"github.com/chazu/mk/pkg/eval"
)

const (
	promptMain = ">> "
	promptCont = ".. "
)

var replCommands = []string{":ast", ":disasm", ":engine", ":globals", ":help", ":quit"}

// runREPL reads inputs until EOF or :quit. An input ending in an open
// brace or paren continues on the next line.
func runREPL(s *session, historyPath string, out io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completer)

	if f, err := os.Open(historyPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		} else {
			log.Warningf("cannot write history %s: %s", historyPath, err)
		}
	}()

	fmt.Fprintf(out, "mk %s (engine %s, :help for commands)\n", version, s.engine)
	r := &repl{s: s, out: out}

	var buf strings.Builder
	for {
		prompt := promptMain
		if buf.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf.Reset()
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			ln.AppendHistory(line)
			if r.command(strings.TrimSpace(line)) {
				return nil
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(line)
		if unbalanced(buf.String()) > 0 {
			continue
		}

		input := buf.String()
		buf.Reset()
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		r.eval(input)
	}
}

type repl struct {
	s       *session
	out     io.Writer
	showAST bool
}

// command runs a meta-command and reports whether the REPL should exit.
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?       Show this help")
		fmt.Fprintln(r.out, "  :engine [vm|eval]   Show or switch the execution engine")
		fmt.Fprintln(r.out, "  :globals            List live global bindings")
		fmt.Fprintln(r.out, "  :disasm             Toggle bytecode disassembly (vm engine)")
		fmt.Fprintln(r.out, "  :ast                Toggle printing the parsed program")
		fmt.Fprintln(r.out, "  :quit, :q           Exit REPL")
	case ":engine":
		if len(fields) == 1 {
			fmt.Fprintf(r.out, "engine: %s\n", r.s.engine)
			break
		}
		if err := r.s.setEngine(fields[1]); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(r.out, "switched to %s\n", r.s.engine)
	case ":globals":
		lines := r.s.globalLines()
		if len(lines) == 0 {
			fmt.Fprintln(r.out, "no globals")
		}
		for _, l := range lines {
			fmt.Fprintln(r.out, l)
		}
	case ":disasm":
		r.s.disasm = !r.s.disasm
		fmt.Fprintf(r.out, "disassembly %s\n", onOff(r.s.disasm))
	case ":ast":
		r.showAST = !r.showAST
		fmt.Fprintf(r.out, "ast %s\n", onOff(r.showAST))
	default:
		fmt.Fprintf(r.out, "unknown command %s (try :help)\n", fields[0])
	}
	return false
}

func (r *repl) eval(input string) {
	if r.showAST {
		if program, err := compiler.Parse(input); err == nil {
			for _, stmt := range program.Statements {
				fmt.Fprintln(r.out, stmt.String())
			}
		}
	}
	v, err := r.s.run(input)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %s\n", describeError(err))
		return
	}
	printResult(r.out, v)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// unbalanced returns the number of unclosed braces, brackets and parens in
// src, ignoring string literals and comments.
func unbalanced(src string) int {
	depth := 0
	lx := compiler.NewLexer(src)
	for {
		tok := lx.NextToken()
		switch tok.Type {
		case compiler.TokenEOF:
			return depth
		case compiler.TokenLBrace, compiler.TokenLParen, compiler.TokenLBracket:
			depth++
		case compiler.TokenRBrace, compiler.TokenRParen, compiler.TokenRBracket:
			depth--
		}
	}
}

// completer offers REPL commands, keywords and built-ins for the last word.
func completer(line string) []string {
	start := strings.LastIndexAny(line, " \t(,[{;") + 1
	head, word := line[:start], line[start:]
	if word == "" {
		return nil
	}

	var candidates []string
	if strings.HasPrefix(word, ":") && head == "" {
		candidates = replCommands
	} else {
		candidates = compiler.Keywords()
		for _, b := range eval.Builtins() {
			candidates = append(candidates, b.Name)
		}
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, word) {
			out = append(out, head+c)
		}
	}
	sort.Strings(out)
	return out
}
