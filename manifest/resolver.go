package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("garnet.manifest")

// Unit file extensions, compiled form first.
const (
	CompiledExt = ".gunit"
	SourceExt   = ".toml"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	resolved map[string]*ResolvedDep
	visiting map[string]bool
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{
		manifest: m,
		resolved: make(map[string]*ResolvedDep),
		visiting: make(map[string]bool),
	}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents). Dependencies are
// visited in name order so the result is deterministic.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	return r.resolveAll(r.manifest, r.manifest.Dependencies, []string{r.manifest.Project.Name})
}

// resolveAll resolves a set of dependencies recursively.
func (r *Resolver) resolveAll(owner *Manifest, deps map[string]Dependency, path []string) ([]ResolvedDep, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if r.visiting[name] {
			return nil, fmt.Errorf("dependency cycle: %s -> %s", strings.Join(path, " -> "), name)
		}
		if _, ok := r.resolved[name]; ok {
			continue // already resolved
		}

		rd, err := resolveOne(owner, name, deps[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		// Check for transitive dependencies
		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			r.visiting[name] = true
			transitive, err := r.resolveAll(rd.Manifest, rd.Manifest.Dependencies, append(path, name))
			delete(r.visiting, name)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		r.resolved[name] = rd
		log.Debugf("resolved dependency %s at %s", name, rd.LocalPath)
		order = append(order, *rd)
	}

	return order, nil
}

// resolveOne resolves a single dependency relative to the manifest that
// declares it.
func resolveOne(owner *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}

	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(owner.Dir, localPath)
	}
	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	// A dependency without a manifest contributes the units in its
	// default directory.
	depManifest, err := Load(localPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		depManifest = &Manifest{Dir: localPath, Units: Units{Dirs: []string{"units"}}}
	}

	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Manifest:  depManifest,
	}, nil
}

// UnitFiles returns the unit files of m in load order: every dependency's
// units first, then m's own. Within a directory files are sorted by path;
// a compiled unit shadows a source with the same name.
func UnitFiles(m *Manifest) ([]string, error) {
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, d := range deps {
		dirFiles, err := ScanDirs(d.Manifest.UnitDirPaths())
		if err != nil {
			return nil, err
		}
		files = append(files, dirFiles...)
	}
	own, err := ScanDirs(m.UnitDirPaths())
	if err != nil {
		return nil, err
	}
	return append(files, own...), nil
}

// ScanDirs lists the unit files under dirs. Missing directories are
// skipped.
func ScanDirs(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		found := make(map[string]string) // path without extension -> file
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == dir {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if ext != CompiledExt && ext != SourceExt {
				return nil
			}
			stem := strings.TrimSuffix(path, ext)
			if prev, ok := found[stem]; ok && filepath.Ext(prev) == CompiledExt {
				return nil
			}
			found[stem] = path
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		stems := make([]string, 0, len(found))
		for stem := range found {
			stems = append(stems, stem)
		}
		sort.Strings(stems)
		for _, stem := range stems {
			files = append(files, found[stem])
		}
	}
	return files, nil
}
