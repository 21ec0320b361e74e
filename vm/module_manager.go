package vm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// ModuleManager: Name resolution and chunk loading
// ---------------------------------------------------------------------------

// Compiler is the collaborator that turns source text into a prototype.
// The engine never parses source itself; a host registers an implementation
// through State.SetCompiler.
type Compiler interface {
	Compile(source, chunkName string) (*Function, error)
}

// moduleExt is the source file extension module names resolve to.
const moduleExt = ".sel"

// ModuleManager resolves module names against the search path, compiles the
// source through the registered Compiler, and runs the chunk. A module runs
// once; later loads are no-ops.
type ModuleManager struct {
	state    *State
	compiler Compiler
	paths    []string
	loaded   map[string]bool
	log      commonlog.Logger
}

func newModuleManager(s *State) *ModuleManager {
	return &ModuleManager{
		state:  s,
		loaded: make(map[string]bool),
		log:    commonlog.GetLogger("selene.modules"),
	}
}

// AddModulePath appends a search directory.
func (m *ModuleManager) AddModulePath(path string) {
	m.paths = append(m.paths, path)
}

// IsLoaded reports whether the named module already ran.
func (m *ModuleManager) IsLoaded(name string) bool {
	return m.loaded[name]
}

// LoadModule resolves name to a source file, compiles it, and runs the
// resulting chunk.
func (m *ModuleManager) LoadModule(name string) error {
	if m.loaded[name] {
		return nil
	}

	file, err := m.findModule(name)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("modules: read %s: %w", file, err)
	}

	proto, err := m.compile(string(source), file)
	if err != nil {
		return err
	}
	if _, err := m.state.Execute(proto); err != nil {
		return fmt.Errorf("modules: run %s: %w", name, err)
	}
	m.loaded[name] = true
	m.log.Infof("loaded module %s from %s", name, file)
	return nil
}

// LoadString compiles and runs an anonymous chunk.
func (m *ModuleManager) LoadString(source string) ([]Value, error) {
	proto, err := m.compile(source, "[string]")
	if err != nil {
		return nil, err
	}
	return m.state.Execute(proto)
}

func (m *ModuleManager) compile(source, chunkName string) (*Function, error) {
	if m.compiler == nil {
		return nil, fmt.Errorf("modules: no compiler registered")
	}
	proto, err := m.compiler.Compile(source, chunkName)
	if err != nil {
		return nil, fmt.Errorf("modules: compile %s: %w", chunkName, err)
	}
	return proto, nil
}

// findModule searches the module path for name, first as given, then with
// the source extension appended.
func (m *ModuleManager) findModule(name string) (string, error) {
	candidates := []string{name, name + moduleExt}
	for _, dir := range m.paths {
		for _, c := range candidates {
			file := filepath.Join(dir, c)
			if info, err := os.Stat(file); err == nil && !info.IsDir() {
				return file, nil
			}
		}
	}
	return "", fmt.Errorf("modules: module %q not found in %d search paths", name, len(m.paths))
}
