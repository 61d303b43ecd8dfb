package modules

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/treeverse/pgpack/pkg/packerrors"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyModuleName   = fmt.Errorf("%w: module without a name", packerrors.ErrConfig)
	ErrDuplicateModule   = fmt.Errorf("%w: duplicate module", packerrors.ErrConfig)
	ErrMissingModulesKey = fmt.Errorf("%w: missing modules section", packerrors.ErrConfig)
)

// Module is an installable unit of the managed schema. Modules refer to each other by name.
type Module struct {
	Name    string   `yaml:"name"`
	Depends []string `yaml:"depends,omitempty"`
}

// Ordered is a module with its dependency level.
type Ordered struct {
	Module
	Level int
}

// MissingError reports a dependency that is not declared as a module.
type MissingError struct {
	Name       string
	RequiredBy []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required module %s missing (required by %s)", e.Name, strings.Join(e.RequiredBy, ", "))
}

func (e *MissingError) Unwrap() error {
	return packerrors.ErrConfig
}

type registryFile struct {
	Modules *[]Module `yaml:"modules"`
}

// LoadRegistry reads a Modules.yml file.
func LoadRegistry(path string) ([]Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	mods, err := ParseRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mods, nil
}

func ParseRegistry(r io.Reader) ([]Module, error) {
	var reg registryFile
	if err := yaml.NewDecoder(r).Decode(&reg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", packerrors.ErrConfig, err)
	}
	if reg.Modules == nil {
		return nil, ErrMissingModulesKey
	}
	var merr *multierror.Error
	seen := make(map[string]struct{}, len(*reg.Modules))
	for i, m := range *reg.Modules {
		if m.Name == "" {
			merr = multierror.Append(merr, fmt.Errorf("entry %d: %w", i, ErrEmptyModuleName))
			continue
		}
		if _, ok := seen[m.Name]; ok {
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name))
		}
		seen[m.Name] = struct{}{}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return *reg.Modules, nil
}

// Sort orders modules by dependency level. Modules on the same level keep
// their declaration order. Every dependency must itself be a declared module.
func Sort(mods []Module) ([]Ordered, error) {
	deps := make(map[string][]string, len(mods))
	for _, m := range mods {
		deps[m.Name] = m.Depends
	}
	levels, err := TopSort(deps)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	if err := missingModules(deps, levels); err != nil {
		return nil, err
	}

	ordered := make([]Ordered, len(mods))
	for i, m := range mods {
		ordered[i] = Ordered{Module: m, Level: levels[m.Name]}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Level < ordered[j].Level
	})
	return ordered, nil
}

func missingModules(deps map[string][]string, levels map[string]int) error {
	requiredBy := make(map[string][]string)
	for name, d := range deps {
		for _, dep := range d {
			if _, ok := deps[dep]; !ok {
				requiredBy[dep] = append(requiredBy[dep], name)
			}
		}
	}
	var merr *multierror.Error
	for _, name := range slices.Sorted(maps.Keys(levels)) {
		if _, ok := deps[name]; ok {
			continue
		}
		by := requiredBy[name]
		slices.Sort(by)
		merr = multierror.Append(merr, &MissingError{Name: name, RequiredBy: slices.Compact(by)})
	}
	return merr.ErrorOrNil()
}

// Names returns the module names in order.
func Names(ordered []Ordered) []string {
	names := make([]string, len(ordered))
	for i, o := range ordered {
		names[i] = o.Name
	}
	return names
}
