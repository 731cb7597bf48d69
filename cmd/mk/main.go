// mk CLI - runs mk programs on the bytecode VM or the tree-walking evaluator
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/chazu/mk/manifest"
	"github.com/chazu/mk/pkg/object"
	"github.com/chazu/mk/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("mk.cli")

// countFlag counts repetitions of a boolean flag, as in -v -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }
func (c *countFlag) Set(s string) error {
	if s == "true" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}

type options struct {
	engine      string
	interactive bool
	disasm      bool
	output      string
	trace       bool
	verbosity   countFlag
	lsp         bool
	noConfig    bool
	logPath     string
}

func main() {
	var opts options
	flag.StringVar(&opts.engine, "engine", "", "Execution engine: vm or eval (default from mk.toml, else vm)")
	flag.BoolVar(&opts.interactive, "i", false, "Start interactive REPL")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print the disassembly of compiled bytecode")
	flag.StringVar(&opts.output, "o", "", "Compile to a bytecode image instead of running")
	flag.BoolVar(&opts.trace, "trace", false, "Log every VM instruction (implies -v -v)")
	flag.Var(&opts.verbosity, "v", "Verbose logging; repeat for more")
	flag.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	flag.BoolVar(&opts.noConfig, "no-config", false, "Skip loading mk.toml")
	flag.StringVar(&opts.logPath, "log", "", "Write logs to this file instead of stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mk [options] [file.mk | file.mkc]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an mk program. Without a file, runs the mk.toml entry or starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mk -i                       # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  mk prog.mk                  # Run on the bytecode VM\n")
		fmt.Fprintf(os.Stderr, "  mk -engine eval prog.mk     # Run on the tree-walking evaluator\n")
		fmt.Fprintf(os.Stderr, "  mk -o prog.mkc prog.mk      # Compile to an image\n")
		fmt.Fprintf(os.Stderr, "  mk -disasm prog.mkc         # Disassemble and run an image\n")
		fmt.Fprintf(os.Stderr, "  mk -lsp                     # Language server for editors\n")
	}
	flag.Parse()

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	verbosity := int(opts.verbosity)
	if opts.trace && verbosity < 2 {
		verbosity = 2
	}
	var logPath *string
	if opts.logPath != "" {
		logPath = &opts.logPath
	}
	commonlog.Configure(verbosity, logPath)

	if opts.lsp {
		log.Info("starting language server")
		return server.NewLSP(version).Run()
	}

	m, err := loadManifest(opts)
	if err != nil {
		return err
	}
	if opts.trace {
		m.VM.Trace = true
	}

	s := newSession(m, os.Stdout)
	s.disasm = opts.disasm
	if opts.engine != "" {
		if err := s.setEngine(opts.engine); err != nil {
			return err
		}
	}

	if len(args) > 1 {
		return fmt.Errorf("expected at most one file, got %d", len(args))
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else if !opts.interactive {
		path = m.EntryPath()
	}

	if path != "" {
		if err := runFile(s, path, opts.output); err != nil {
			return err
		}
	} else if opts.output != "" {
		return fmt.Errorf("-o needs a source file")
	}

	if opts.interactive || path == "" {
		return runREPL(s, m.HistoryPath(), os.Stdout)
	}
	return nil
}

func loadManifest(opts options) (*manifest.Manifest, error) {
	if opts.noConfig {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Infof("loaded %s from %s", manifest.FileName, m.Dir)
	return m, nil
}

// runFile runs a source file or image, or compiles a source file to an image
// when output is set.
func runFile(s *session, path, output string) error {
	var result object.Object
	var err error

	if filepath.Ext(path) == ".mkc" {
		if output != "" {
			return fmt.Errorf("%s is already compiled", path)
		}
		log.Infof("running image %s", path)
		result, err = s.runImage(path)
	} else {
		src, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("cannot read %s: %w", path, readErr)
		}
		if output != "" {
			log.Infof("compiling %s to %s", path, output)
			return s.compileImage(string(src), output)
		}
		log.Infof("running %s with the %s engine", path, s.engine)
		result, err = s.run(string(src))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	printResult(s.out, result)
	return nil
}

func printResult(w io.Writer, v object.Object) {
	if v == nil || v == object.NullValue {
		return
	}
	fmt.Fprintln(w, v.Inspect())
}
