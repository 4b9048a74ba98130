// Package manifest handles prota.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/prota/vm"
)

// FileName is the name of the project configuration file.
const FileName = "prota.toml"

// Manifest represents a prota.toml project configuration.
type Manifest struct {
	Interpreter Interpreter `toml:"interpreter"`
	Collector   Collector   `toml:"collector"`
	Store       Store       `toml:"store"`
	Log         Log         `toml:"log"`

	// Dir is the directory containing the prota.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter sizes the stacks and sets debugging options.
type Interpreter struct {
	ValueStack    int  `toml:"value-stack"`
	CallStack     int  `toml:"call-stack"`
	Trace         bool `toml:"trace"`
	DebugChecks   bool `toml:"debug-checks"`
	MaxPrintDepth int  `toml:"max-print-depth"`
}

// Collector configures automatic collection.
type Collector struct {
	Threshold int `toml:"threshold"`
}

// Store locates the package store.
type Store struct {
	Path string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Manifest {
	d := vm.DefaultConfig()
	return &Manifest{
		Interpreter: Interpreter{
			ValueStack:    d.ValueStack,
			CallStack:     d.CallStack,
			MaxPrintDepth: d.MaxPrintDepth,
		},
		Collector: Collector{Threshold: 10000},
		Store:     Store{Path: "prota.db"},
	}
}

// Parse decodes and validates manifest text. name is used in errors.
func Parse(data []byte, name string) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	return m, nil
}

// Load parses a prota.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a prota.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// VMConfig converts the manifest to a VM configuration.
func (m *Manifest) VMConfig() vm.Config {
	return vm.Config{
		ValueStack:       m.Interpreter.ValueStack,
		CallStack:        m.Interpreter.CallStack,
		Trace:            m.Interpreter.Trace,
		DebugChecks:      m.Interpreter.DebugChecks,
		MaxPrintDepth:    m.Interpreter.MaxPrintDepth,
		CollectThreshold: m.Collector.Threshold,
	}
}

// StorePath returns the package store path, resolved against the
// manifest's directory when relative.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

// LogPath returns the log file path, or "" to log to stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
