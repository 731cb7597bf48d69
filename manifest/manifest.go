// Package manifest handles mk.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "mk.toml"

// SourceExt is the extension of mk source files.
const SourceExt = ".mk"

// Engine names accepted in [repl] engine.
const (
	EngineVM   = "vm"
	EngineEval = "eval"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid manifest")

// Manifest represents an mk.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	VM      VM      `toml:"vm"`
	REPL    REPL    `toml:"repl"`

	// Dir is the directory containing the mk.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// VM sizes the bytecode virtual machine.
type VM struct {
	StackSize   int  `toml:"stack-size"`
	GlobalsSize int  `toml:"globals-size"`
	Trace       bool `toml:"trace"`
}

// REPL configures the interactive loop.
type REPL struct {
	Engine  string `toml:"engine"`
	History string `toml:"history"`
}

// Default returns the configuration used when no mk.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.VM.StackSize == 0 {
		m.VM.StackSize = 2048
	}
	if m.VM.GlobalsSize == 0 {
		m.VM.GlobalsSize = 1 << 16
	}
	if m.REPL.Engine == "" {
		m.REPL.Engine = EngineVM
	}
	if m.REPL.History == "" {
		m.REPL.History = ".mk_history"
	}
}

// Load parses and validates the mk.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find an mk.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges. Zero values are filled by Load and Default
// before validation, so explicit non-positive sizes are rejected.
func (m *Manifest) Validate() error {
	if m.VM.StackSize <= 0 {
		return fmt.Errorf("%w: vm.stack-size must be positive, got %d", ErrInvalid, m.VM.StackSize)
	}
	if m.VM.GlobalsSize <= 0 || m.VM.GlobalsSize > 1<<16 {
		return fmt.Errorf("%w: vm.globals-size must be in 1..65536, got %d", ErrInvalid, m.VM.GlobalsSize)
	}
	switch m.REPL.Engine {
	case EngineVM, EngineEval:
	default:
		return fmt.Errorf("%w: repl.engine must be %q or %q, got %q", ErrInvalid, EngineVM, EngineEval, m.REPL.Engine)
	}
	if m.Source.Entry != "" && filepath.IsAbs(m.Source.Entry) {
		return fmt.Errorf("%w: source.entry must be relative, got %s", ErrInvalid, m.Source.Entry)
	}
	return nil
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the entry file path, searching the source directories
// in order. It returns "" when no entry is configured or none exists.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	for _, dir := range m.SourceDirPaths() {
		path := filepath.Join(dir, m.Source.Entry)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	path := m.resolve(m.Source.Entry)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// HistoryPath returns the REPL history file path.
func (m *Manifest) HistoryPath() string {
	if filepath.IsAbs(m.REPL.History) {
		return m.REPL.History
	}
	if m.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, m.REPL.History)
		}
	}
	return m.resolve(m.REPL.History)
}

// SourceFiles lists the .mk files under the source directories, sorted.
// Missing directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == SourceExt {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
