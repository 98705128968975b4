// Package manifest handles garnet.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/garnet/vm"
)

// FileName is the name of the project manifest.
const FileName = "garnet.toml"

// Manifest represents a garnet.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Units        Units                 `toml:"units"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Runtime      Runtime               `toml:"runtime"`
	Log          Log                   `toml:"log"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Units configures where unit files live and what runs first.
type Units struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
	// Output is where compiled units are written.
	Output string `toml:"output"`
}

// Dependency is another project whose units load before this one's.
type Dependency struct {
	Path string `toml:"path"`
}

// Runtime holds the VM switches. Severities are "error", "warning" or
// "ignore"; empty fields keep the VM defaults.
type Runtime struct {
	MissingRequire       string `toml:"missing_require"`
	UnsupportedFeatures  string `toml:"unsupported_features"`
	ExperimentalFeatures string `toml:"experimental_features"`
	StackTrace           *bool  `toml:"stack_trace"`
	MaxCallDepth         int    `toml:"max_call_depth"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Load parses a garnet.toml file from the given directory.
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
		return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Units.Dirs) == 0 {
		m.Units.Dirs = []string{"units"}
	}
	if m.Units.Output == "" {
		m.Units.Output = filepath.Join(".garnet", "units")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file,
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

// UnitDirPaths returns absolute paths for the configured unit directories.
func (m *Manifest) UnitDirPaths() []string {
	var paths []string
	for _, d := range m.Units.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputDir returns the directory compiled units are written to.
func (m *Manifest) OutputDir() string {
	if filepath.IsAbs(m.Units.Output) {
		return m.Units.Output
	}
	return filepath.Join(m.Dir, m.Units.Output)
}

// RuntimeConfig converts the [runtime] table into a VM configuration,
// starting from vm.DefaultConfig.
func (m *Manifest) RuntimeConfig() (vm.Config, error) {
	cfg := vm.DefaultConfig()
	r := m.Runtime

	severities := []struct {
		key   string
		value string
		dst   *vm.Severity
	}{
		{"missing_require", r.MissingRequire, &cfg.MissingRequire},
		{"unsupported_features", r.UnsupportedFeatures, &cfg.UnsupportedFeatures},
		{"experimental_features", r.ExperimentalFeatures, &cfg.ExperimentalFeatures},
	}
	for _, s := range severities {
		if s.value == "" {
			continue
		}
		sev, err := vm.ParseSeverity(s.value)
		if err != nil {
			return cfg, fmt.Errorf("runtime.%s: %w", s.key, err)
		}
		*s.dst = sev
	}
	if r.StackTrace != nil {
		cfg.StackTrace = *r.StackTrace
	}
	if r.MaxCallDepth != 0 {
		cfg.MaxCallDepth = r.MaxCallDepth
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("runtime: %w", err)
	}
	return cfg, nil
}
