package modules

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/treeverse/pgpack/pkg/packerrors"
)

// CycleError reports the dependency entries left unresolved once peeling stops making progress.
type CycleError struct {
	Remaining map[string][]string
}

func (e *CycleError) Error() string {
	return "cyclic dependency: " + formatDependencies(e.Remaining)
}

func (e *CycleError) Unwrap() error {
	return packerrors.ErrConfig
}

// TopSort assigns a level to every name in deps, including dependency names
// that are not keys. level(m) is greater than level(d) for every dependency d
// of m that is itself a key.
//
// Each round assigns the current level to keys whose dependency list is empty
// and to dependency names that are not keys, then removes the latter from all
// lists. Keys with an empty list leave the working map. The level advances
// only when a round assigned a new name.
func TopSort(deps map[string][]string) (map[string]int, error) {
	working := make(map[string][]string, len(deps))
	for name, d := range deps {
		working[name] = slices.Clone(d)
	}

	levels := make(map[string]int)
	level := 0
	for len(working) > 0 {
		notKeys := make(map[string]struct{})
		for _, d := range working {
			for _, dep := range d {
				if _, ok := working[dep]; !ok {
					notKeys[dep] = struct{}{}
				}
			}
		}

		found := false
		assign := func(name string) {
			if _, ok := levels[name]; !ok {
				levels[name] = level
				found = true
			}
		}
		for name, d := range working {
			if len(d) == 0 {
				assign(name)
			}
		}
		for name := range notKeys {
			assign(name)
		}

		next := make(map[string][]string, len(working))
		for name, d := range working {
			if len(d) == 0 {
				continue
			}
			next[name] = slices.DeleteFunc(slices.Clone(d), func(dep string) bool {
				_, ok := notKeys[dep]
				return ok
			})
		}
		if sameDependencies(working, next) {
			return nil, &CycleError{Remaining: working}
		}
		working = next
		if found {
			level++
		}
	}
	return levels, nil
}

func sameDependencies(a, b map[string][]string) bool {
	return maps.EqualFunc(a, b, slices.Equal[[]string])
}

func formatDependencies(deps map[string][]string) string {
	names := slices.Sorted(maps.Keys(deps))
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s -> [%s]", name, strings.Join(deps[name], ", ")))
	}
	return strings.Join(parts, ", ")
}
