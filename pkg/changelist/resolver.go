package changelist

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/packerrors"
	"github.com/treeverse/pgpack/pkg/version"
)

// DefaultSchemaPlaceholder is the schema name changelists are written against.
const DefaultSchemaPlaceholder = "schema_madlib"

var (
	ErrDowngrade    = fmt.Errorf("%w: target revision is older than the current one", packerrors.ErrUpgradePath)
	ErrChainOverlap = fmt.Errorf("%w: changelists overlap", packerrors.ErrUpgradePath)
)

// UnpairedRevisionsError reports revisions that do not appear exactly twice
// among the path endpoints and the selected changelist boundaries.
type UnpairedRevisionsError struct {
	From     version.Revision
	To       version.Revision
	Unpaired []version.Revision
}

func (e *UnpairedRevisionsError) Error() string {
	revs := make([]string, len(e.Unpaired))
	for i, r := range e.Unpaired {
		revs[i] = r.String()
	}
	return fmt.Sprintf("upgrade from %s to %s is broken by missing changelists: unpaired revisions %s",
		e.From, e.To, strings.Join(revs, ", "))
}

func (e *UnpairedRevisionsError) Unwrap() error {
	return packerrors.ErrUpgradePath
}

// Lister is the part of a changelist store the resolver reads.
type Lister interface {
	List(ctx context.Context) ([]Ref, error)
	Load(ctx context.Context, ref Ref) (*Document, error)
}

type Resolver struct {
	store       Lister
	schema      string
	placeholder string
}

type ResolverOption func(r *Resolver)

// WithSchemaPlaceholder sets the schema name changelists are written against.
func WithSchemaPlaceholder(placeholder string) ResolverOption {
	return func(r *Resolver) {
		r.placeholder = strings.ToLower(placeholder)
	}
}

func NewResolver(store Lister, schema string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       store,
		schema:      strings.ToLower(schema),
		placeholder: DefaultSchemaPlaceholder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges every changelist between current and target into a ChangeSet.
// The selected changelists must chain from current to target without gaps or overlaps.
func (r *Resolver) Resolve(ctx context.Context, current, target version.Revision) (*ChangeSet, error) {
	log := logging.FromContext(ctx).WithFields(logging.Fields{
		logging.FromRevisionFieldKey: current.String(),
		logging.ToRevisionFieldKey:   target.String(),
	})
	cs := newChangeSet(r.schema)
	switch cmp := current.Compare(target); {
	case cmp > 0:
		return nil, fmt.Errorf("%w: %s > %s", ErrDowngrade, current, target)
	case cmp == 0:
		log.Debug("Current revision is the target, nothing to resolve")
		return cs, nil
	}

	refs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	path, err := selectPath(refs, current, target)
	if err != nil {
		return nil, err
	}

	n := normalizer{schema: r.schema, placeholder: r.placeholder}
	var merr *multierror.Error
	for _, ref := range path {
		doc, err := r.store.Load(ctx, ref)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if err := cs.merge(doc, n); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	log.WithField("changelists", len(path)).Info("Resolved upgrade path")
	return cs, nil
}

// selectPath picks the changelists inside [current, target], checks that
// every revision boundary pairs up and returns them in chain order.
func selectPath(refs []Ref, current, target version.Revision) ([]Ref, error) {
	var selected []Ref
	for _, ref := range refs {
		if ref.From.GreaterThanOrEqual(current) && target.GreaterThanOrEqual(ref.To) {
			selected = append(selected, ref)
		}
	}

	counts := make(map[string]int)
	revisions := make(map[string]version.Revision)
	count := func(r version.Revision) {
		counts[r.Key()]++
		revisions[r.Key()] = r
	}
	count(current)
	count(target)
	for _, ref := range selected {
		count(ref.From)
		count(ref.To)
	}
	var unpaired []version.Revision
	for key, n := range counts {
		if n != 2 {
			unpaired = append(unpaired, revisions[key])
		}
	}
	if len(unpaired) > 0 {
		slices.SortFunc(unpaired, version.Revision.Compare)
		return nil, &UnpairedRevisionsError{From: current, To: target, Unpaired: unpaired}
	}

	slices.SortFunc(selected, func(a, b Ref) int {
		if c := a.From.Compare(b.From); c != 0 {
			return c
		}
		return a.To.Compare(b.To)
	})
	prev := Ref{Name: "revision " + current.String(), To: current}
	for _, ref := range selected {
		if !ref.From.Equal(prev.To) {
			return nil, fmt.Errorf("%w: %s and %s", ErrChainOverlap, prev.Name, ref.Name)
		}
		prev = ref
	}
	return selected, nil
}
