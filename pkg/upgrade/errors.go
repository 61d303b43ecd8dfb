package upgrade

import (
	"fmt"
	"strings"

	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/packerrors"
)

var (
	ErrNotInstalled = fmt.Errorf("%w: schema is not installed", packerrors.ErrConfig)
	ErrUnsupported  = fmt.Errorf("%w: upgrade not supported", packerrors.ErrUpgradePath)
)

// Conflict is a managed object about to change that user objects depend on.
type Conflict struct {
	Kind   changelist.Kind
	Object string
	Users  []string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s %s used by %s", c.Kind, c.Object, strings.Join(c.Users, ", "))
}

// DependencyConflictError aborts an upgrade before any statement is emitted.
type DependencyConflictError struct {
	Conflicts []Conflict
	// TableDependencies lists every user column and index on managed
	// types and operator classes, changed or not.
	TableDependencies []string
	// ViewGraph renders the user views built on managed objects.
	ViewGraph string
}

func (e *DependencyConflictError) Error() string {
	lines := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		lines = append(lines, c.String())
	}
	return fmt.Sprintf("%d user object dependencies on changing objects: %s", len(e.Conflicts), strings.Join(lines, "; "))
}

func (e *DependencyConflictError) Unwrap() error {
	return packerrors.ErrDependencyConflict
}
