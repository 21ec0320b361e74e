// selene - runs and inspects Selene prototype images.
//
// Usage:
//
//	selene run <image>       run a prototype image
//	selene disasm <image>    print an image's disassembly
//	selene run               run the manifest's entry image
//
// When the working directory carries a selene.toml, its source dirs become
// the State's module search path and its entry image is the default run
// target.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/selene-lang/selene/manifest"
	"github.com/selene-lang/selene/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("verbose", 0, "log verbosity (0 = quiet)")
	flag.Usage = usage
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "run":
		err = runCommand(args[1:])
	case "disasm":
		err = disasmCommand(args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "selene: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: selene [-verbose N] run [image]\n")
	fmt.Fprintf(os.Stderr, "       selene [-verbose N] disasm <image>\n")
}

// newState builds a State configured from the working directory's manifest,
// when one exists.
func newState() (*vm.State, *manifest.Manifest, error) {
	state := vm.NewState()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	if !manifest.Exists(cwd) {
		return state, nil, nil
	}

	m, err := manifest.Load(cwd)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range m.ModulePaths() {
		state.AddModulePath(p)
	}
	return state, m, nil
}

func resolveImage(args []string, m *manifest.Manifest) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if m != nil && m.EntryPath() != "" {
		return m.EntryPath(), nil
	}
	return "", fmt.Errorf("no image given and no manifest entry configured")
}

func loadImage(path string, state *vm.State) (*vm.Function, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vm.ReadImage(f, state)
}

func runCommand(args []string) error {
	state, m, err := newState()
	if err != nil {
		return err
	}
	path, err := resolveImage(args, m)
	if err != nil {
		return err
	}
	proto, err := loadImage(path, state)
	if err != nil {
		return err
	}

	results, err := state.Execute(proto)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Println(r.String())
	}
	return nil
}

func disasmCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("disasm needs an image path")
	}
	state := vm.NewState()
	proto, err := loadImage(args[0], state)
	if err != nil {
		return err
	}
	fmt.Print(vm.Disassemble(proto))
	return nil
}
