// Garnet CLI - loads units and runs an entry point or an interactive shell
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/manifest"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/unit"
)

var log = commonlog.GetLogger("garnet.cli")

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error { *v++; return nil }

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose output (repeat for more)")
	dir := flag.String("C", ".", "Project directory to search for "+manifest.FileName)
	mainEntry := flag.String("m", "", "Main entry point (e.g., 'App.start' or just 'main')")
	interactive := flag.Bool("i", false, "Start interactive shell")
	compileSrc := flag.String("compile", "", "Compile a source unit instead of running")
	output := flag.String("o", "", "Output path for -compile")
	build := flag.Bool("build", false, "Compile every project source unit into the output directory")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: garnet [options] [unit files...]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the project's units, then the given files, and requires each.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  garnet -i                          # Start shell\n")
		fmt.Fprintf(os.Stderr, "  garnet app.toml -m App.start       # Load app.toml, run App.start\n")
		fmt.Fprintf(os.Stderr, "  garnet -compile a.toml -o a.gunit  # Compile one unit\n")
		fmt.Fprintf(os.Stderr, "  garnet -build                      # Compile the project\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fatal(err)
	}

	level := int(verbose)
	var logPath *string
	if m != nil {
		level = max(level, m.Log.Verbosity)
		if m.Log.Path != "" {
			p := m.Log.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(m.Dir, p)
			}
			logPath = &p
		}
	}
	commonlog.Configure(level, logPath)

	switch {
	case *compileSrc != "":
		out := *output
		if out == "" {
			out = strings.TrimSuffix(*compileSrc, filepath.Ext(*compileSrc)) + manifest.CompiledExt
		}
		if err := compileUnit(*compileSrc, out); err != nil {
			fatal(err)
		}
		return
	case *build:
		if m == nil {
			fatal(fmt.Errorf("no %s found from %s", manifest.FileName, *dir))
		}
		if err := buildProject(m); err != nil {
			fatal(err)
		}
		return
	}

	cfg := vm.DefaultConfig()
	if m != nil {
		if cfg, err = m.RuntimeConfig(); err != nil {
			fatal(err)
		}
	}
	machine := vm.NewVM(cfg)

	var files []string
	if m != nil {
		if files, err = manifest.UnitFiles(m); err != nil {
			fatal(err)
		}
		log.Infof("project %s: %d unit files", m.Project.Name, len(files))
	}
	files = append(files, flag.Args()...)

	status := run(machine, files, entryPoint(*mainEntry, m))
	if status == 0 && (*interactive || (len(flag.Args()) == 0 && *mainEntry == "" && isatty.IsTerminal(os.Stdin.Fd()))) {
		runShell(machine)
	}
	if err := machine.RunExitHandlers(); err != nil && status == 0 {
		status = machine.ExitStatus(err)
	}
	os.Exit(status)
}

func entryPoint(flagValue string, m *manifest.Manifest) string {
	if flagValue != "" || m == nil {
		return flagValue
	}
	return m.Units.Entry
}

// run registers and requires every file, then invokes entry if given. It
// returns the process exit status.
func run(machine *vm.VM, files []string, entry string) int {
	var paths []string
	for _, f := range files {
		u, err := unit.RegisterFile(machine, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		paths = append(paths, u.Path)
	}
	for _, p := range paths {
		if _, err := machine.Require(p); err != nil {
			return report(machine, err)
		}
	}
	if entry == "" {
		return 0
	}
	if _, err := unit.Invoke(machine, entry); err != nil {
		return report(machine, err)
	}
	return 0
}

// report prints an uncaught error and returns its exit status. SystemExit
// is silent.
func report(machine *vm.VM, err error) int {
	if exc := machine.AsException(err); exc != nil && machine.IsA(exc, machine.SystemExitClass) {
		return machine.ExitStatus(err)
	}
	fmt.Fprintln(os.Stderr, machine.FormatUncaught(err))
	return machine.ExitStatus(err)
}

func compileUnit(src, out string) error {
	s, err := unit.LoadSource(src)
	if err != nil {
		return err
	}
	u, err := unit.Compile(s)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	if err := unit.WriteFile(out, u); err != nil {
		return err
	}
	log.Infof("compiled %s -> %s", src, out)
	return nil
}

// buildProject compiles the project's own source units, mirroring their
// layout under the output directory.
func buildProject(m *manifest.Manifest) error {
	outDir := m.OutputDir()
	for _, root := range m.UnitDirPaths() {
		files, err := manifest.ScanDirs([]string{root})
		if err != nil {
			return err
		}
		for _, f := range files {
			if filepath.Ext(f) != manifest.SourceExt {
				continue
			}
			rel, err := filepath.Rel(root, f)
			if err != nil {
				return err
			}
			out := filepath.Join(outDir, strings.TrimSuffix(rel, manifest.SourceExt)+manifest.CompiledExt)
			if err := compileUnit(f, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
