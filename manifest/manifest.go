// Package manifest handles selene.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the project configuration file name.
const FileName = "selene.toml"

// Manifest represents a selene.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`

	// Dir is the directory containing the selene.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where scripts and the entry image live.
type Source struct {
	// Dirs are module search directories, relative to Dir.
	Dirs []string `toml:"dirs"`
	// Entry is the prototype image the project runs, relative to Dir.
	Entry string `toml:"entry"`
}

// Load reads and validates the manifest in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	m.Dir = dir

	if m.Project.Name == "" {
		return nil, fmt.Errorf("manifest: %s: project.name is required", path)
	}
	return &m, nil
}

// Exists reports whether dir carries a manifest.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil && !info.IsDir()
}

// ModulePaths returns the absolute module search directories.
func (m *Manifest) ModulePaths() []string {
	if len(m.Source.Dirs) == 0 {
		return []string{m.Dir}
	}
	paths := make([]string, len(m.Source.Dirs))
	for i, d := range m.Source.Dirs {
		paths[i] = filepath.Join(m.Dir, d)
	}
	return paths
}

// EntryPath returns the absolute path of the entry image, or "" when the
// manifest declares none.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}
