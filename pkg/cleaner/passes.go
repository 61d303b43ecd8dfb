package cleaner

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

// Pass is one cleaning step over an install script.
type Pass string

const (
	PassComments        Pass = "comments"
	PassTypes           Pass = "types"
	PassCasts           Pass = "casts"
	PassOperators       Pass = "operators"
	PassOperatorClasses Pass = "opclasses"
	PassAggregates      Pass = "aggregates"
	PassFunctions       Pass = "functions"
)

// AllPasses lists every pass in the order they run.
var AllPasses = []Pass{PassComments, PassTypes, PassCasts, PassOperators, PassOperatorClasses, PassAggregates, PassFunctions}

// DefaultPasses are the passes enabled unless configured otherwise. The
// operator, operator class, aggregate and function passes are opt-in.
var DefaultPasses = []Pass{PassComments, PassTypes, PassCasts}

var ErrUnknownPass = fmt.Errorf("%w: unknown cleaner pass", packerrors.ErrConfig)

// ParsePasses validates pass names. An empty list selects DefaultPasses.
func ParsePasses(names []string) ([]Pass, error) {
	if len(names) == 0 {
		return slices.Clone(DefaultPasses), nil
	}
	passes := make([]Pass, 0, len(names))
	for _, n := range names {
		p := Pass(strings.ToLower(strings.TrimSpace(n)))
		if !slices.Contains(AllPasses, p) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPass, n)
		}
		if !slices.Contains(passes, p) {
			passes = append(passes, p)
		}
	}
	return passes, nil
}

// Existing is the state of the managed schema before the upgrade.
type Existing struct {
	Types           []string
	Operators       []catalog.Operator
	OperatorClasses []catalog.OperatorClass
	Aggregates      []catalog.Routine
}

// LoadExisting reads the managed objects the given passes compare against.
func LoadExisting(ctx context.Context, in *catalog.Inspector, passes []Pass) (*Existing, error) {
	var (
		e   Existing
		err error
	)
	if slices.Contains(passes, PassTypes) {
		if e.Types, err = in.ExistingTypes(ctx); err != nil {
			return nil, err
		}
	}
	if slices.Contains(passes, PassOperators) {
		if e.Operators, err = in.ExistingOperators(ctx); err != nil {
			return nil, err
		}
	}
	if slices.Contains(passes, PassOperatorClasses) {
		if e.OperatorClasses, err = in.ExistingOperatorClasses(ctx); err != nil {
			return nil, err
		}
	}
	if slices.Contains(passes, PassAggregates) {
		if e.Aggregates, err = in.ExistingAggregates(ctx); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
