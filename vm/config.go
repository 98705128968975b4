package vm

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Severity decides what happens when a program hits a missing file or an
// unsupported or experimental feature.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityIgnore
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityIgnore:
		return "ignore"
	}
	return fmt.Sprintf("Severity(%d)", s)
}

// ParseSeverity accepts "error", "warning" or "ignore".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "ignore":
		return SeverityIgnore, nil
	}
	return 0, fmt.Errorf("invalid severity %q (want error, warning or ignore)", s)
}

// Config holds the runtime switches of a VM.
type Config struct {
	// MissingRequire applies when require names an unregistered unit.
	MissingRequire Severity
	// UnsupportedFeatures applies when a program uses a feature the
	// runtime only stubs.
	UnsupportedFeatures Severity
	// ExperimentalFeatures applies on first use of an experimental
	// feature. It cannot be SeverityError.
	ExperimentalFeatures Severity
	// StackTrace enables backtrace capture on raise.
	StackTrace bool
	// MaxCallDepth bounds nested method calls before SystemStackError.
	MaxCallDepth int

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
}

// DefaultConfig returns the settings used when no manifest is present.
func DefaultConfig() Config {
	return Config{
		MissingRequire:       SeverityError,
		UnsupportedFeatures:  SeverityWarning,
		ExperimentalFeatures: SeverityWarning,
		StackTrace:           true,
		MaxCallDepth:         10000,
		Stdout:               os.Stdout,
		Stderr:               os.Stderr,
		Stdin:                os.Stdin,
	}
}

// Validate reports settings the VM cannot honor.
func (c Config) Validate() error {
	if c.ExperimentalFeatures == SeverityError {
		return fmt.Errorf("experimental_features cannot be %q", c.ExperimentalFeatures)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.ExperimentalFeatures == SeverityError {
		c.ExperimentalFeatures = SeverityWarning
	}
	if c.Stdout == nil {
		c.Stdout = d.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = d.Stderr
	}
	if c.Stdin == nil {
		c.Stdin = d.Stdin
	}
	return c
}

// Config returns the VM's configuration.
func (vm *VM) Config() Config { return vm.cfg }

// Unsupported reports use of a feature the runtime does not implement.
// Depending on configuration it raises NotImplementedError, warns once,
// or does nothing.
func (vm *VM) Unsupported(feature string) error {
	switch vm.cfg.UnsupportedFeatures {
	case SeverityError:
		return vm.Errorf(vm.NotImplementedErrorClass, "%s is not supported", feature)
	case SeverityWarning:
		vm.warnOnce("unsupported:"+feature, feature+" is not supported")
	}
	return nil
}

// Experimental warns once per feature unless experimental warnings are
// ignored.
func (vm *VM) Experimental(feature string) {
	if vm.cfg.ExperimentalFeatures == SeverityWarning {
		vm.warnOnce("experimental:"+feature, "experimental feature used: "+feature)
	}
}

func (vm *VM) warnOnce(key, msg string) {
	if vm.warned[key] {
		return
	}
	vm.warned[key] = true
	vm.log.Warning(msg)
	fmt.Fprintf(vm.cfg.Stderr, "warning: %s\n", msg)
}
