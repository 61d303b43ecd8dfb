// Package upgrade plans and applies in-place upgrades of a managed schema.
package upgrade

//go:generate go run github.com/golang/mock/mockgen -package=mock -destination=mock/upgrade.go github.com/treeverse/pgpack/pkg/upgrade ScriptSource,Executor,Resolver

import (
	"context"
	"fmt"
	"slices"

	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/cleaner"
	"github.com/treeverse/pgpack/pkg/db"
	"github.com/treeverse/pgpack/pkg/dependency"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/modules"
	"github.com/treeverse/pgpack/pkg/version"
)

// ScriptSource returns the full install script of a module.
type ScriptSource interface {
	Script(ctx context.Context, module string) (string, error)
}

// Executor runs a script inside a single transaction.
type Executor interface {
	ExecScript(ctx context.Context, script string) error
}

// Resolver builds the change set between two revisions.
type Resolver interface {
	Resolve(ctx context.Context, current, target version.Revision) (*changelist.ChangeSet, error)
}

type State string

const (
	StateStart              State = "start"
	StateResolveChangeSet   State = "resolve_changeset"
	StateDetectDependencies State = "detect_dependencies"
	StateAbort              State = "abort"
	StateProceed            State = "proceed"
	StateEmitDrops          State = "emit_drops"
	StateEmitScripts        State = "emit_install_scripts"
	StateDone               State = "done"
)

type Option func(*Upgrader)

// WithMinimumRevision rejects upgrades from revisions older than rev.
func WithMinimumRevision(rev version.Revision) Option {
	return func(u *Upgrader) {
		u.minimum = rev
	}
}

// WithCascadeTypes drops the named types with CASCADE.
func WithCascadeTypes(types ...string) Option {
	return func(u *Upgrader) {
		u.cascadeTypes = types
	}
}

func WithCleanPasses(passes ...cleaner.Pass) Option {
	return func(u *Upgrader) {
		u.passes = passes
	}
}

// Upgrader plans an upgrade of the managed schema as a single forward pass:
// resolve the change set, detect dependencies, then either abort or emit the
// drops and the cleaned install scripts.
type Upgrader struct {
	resolver     Resolver
	inspector    *catalog.Inspector
	modules      []modules.Module
	scripts      ScriptSource
	minimum      version.Revision
	cascadeTypes []string
	passes       []cleaner.Pass
}

func New(resolver Resolver, inspector *catalog.Inspector, mods []modules.Module, scripts ScriptSource, opts ...Option) *Upgrader {
	u := &Upgrader{
		resolver:  resolver,
		inspector: inspector,
		modules:   mods,
		scripts:   scripts,
		passes:    cleaner.DefaultPasses,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Plan computes the upgrade to target. It only reads the catalog. A
// DependencyConflictError is returned when user objects depend on changing
// managed objects.
func (u *Upgrader) Plan(ctx context.Context, target version.Revision) (*Plan, error) {
	schema := u.inspector.Target().Schema
	log := logging.FromContext(ctx).WithFields(logging.Fields{
		logging.SchemaFieldKey:     schema,
		logging.ToRevisionFieldKey: target.String(),
	})
	enter := func(s State) {
		log.WithField(logging.StateFieldKey, string(s)).Debug("Upgrade state")
	}

	enter(StateStart)
	installed, err := u.inspector.InstalledRevision(ctx)
	if err != nil {
		return nil, err
	}
	if installed.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, schema)
	}
	log = log.WithField(logging.FromRevisionFieldKey, installed.String())
	plan := &Plan{Schema: schema, From: installed, To: target}
	if installed.GreaterThanOrEqual(target) {
		log.Info("Schema is up to date")
		plan.Status = StatusUpToDate
		enter(StateDone)
		return plan, nil
	}
	if !u.minimum.IsZero() && installed.LessThan(u.minimum) {
		return nil, fmt.Errorf("%w: upgrading from %s, minimum is %s", ErrUnsupported, installed, u.minimum)
	}

	enter(StateResolveChangeSet)
	changes, err := u.resolver.Resolve(ctx, installed, target)
	if err != nil {
		return nil, err
	}
	plan.ChangeSet = changes

	enter(StateDetectDependencies)
	tables, err := dependency.DetectTables(ctx, u.inspector)
	if err != nil {
		return nil, err
	}
	views, err := dependency.DetectViews(ctx, u.inspector)
	if err != nil {
		return nil, err
	}
	var (
		tableReport []string
		viewGraph   string
	)
	if tables.HasDependency() {
		tableReport = tables.Report()
		log.WithField("dependencies", tableReport).Info("User tables depend on managed objects")
	}
	if views.HasDependency() {
		viewGraph = views.GraphString()
		log.WithField("graph", viewGraph).Info("User views depend on managed objects")
	}
	conflicts, err := u.conflicts(ctx, changes, tables, views)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		enter(StateAbort)
		log.WithField("conflicts", len(conflicts)).Error("User objects depend on changing objects")
		return nil, &DependencyConflictError{Conflicts: conflicts, TableDependencies: tableReport, ViewGraph: viewGraph}
	}
	enter(StateProceed)

	enter(StateEmitDrops)
	plan.Drops, err = changes.DropStatements(u.cascadeTypes)
	if err != nil {
		return nil, err
	}

	enter(StateEmitScripts)
	ordered, err := modules.Sort(u.modules)
	if err != nil {
		return nil, err
	}
	existing, err := cleaner.LoadExisting(ctx, u.inspector, u.passes)
	if err != nil {
		return nil, err
	}
	cl := cleaner.New(changes, existing, cleaner.WithPasses(u.passes...), cleaner.WithLogger(log))
	for _, m := range ordered {
		sql, err := u.scripts.Script(ctx, m.Name)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
		plan.Modules = append(plan.Modules, ModuleScript{Module: m.Name, SQL: cl.Clean(sql, m.Name)})
	}
	plan.Stamp = db.StampMigrationSQL(schema, target.String())
	plan.Status = StatusPlanned
	enter(StateDone)
	log.WithFields(logging.Fields{
		"drops":   len(plan.Drops),
		"modules": len(plan.Modules),
	}).Info("Upgrade planned")
	return plan, nil
}

// conflicts intersects what user objects depend on with what changes.
func (u *Upgrader) conflicts(ctx context.Context, changes *changelist.ChangeSet, tables *dependency.TableDetector, views *dependency.ViewDetector) ([]Conflict, error) {
	schema := changes.Schema()

	var conflicts []Conflict
	typeUsers := make(map[string][]string)
	var typeOrder []string
	for _, c := range tables.Columns {
		if !changes.HasType(c.Type) {
			continue
		}
		if _, ok := typeUsers[c.Type]; !ok {
			typeOrder = append(typeOrder, c.Type)
		}
		typeUsers[c.Type] = append(typeUsers[c.Type], fmt.Sprintf("%s.%s.%s", c.Schema, c.Table, c.Column))
	}
	for _, t := range typeOrder {
		conflicts = append(conflicts, Conflict{Kind: changelist.KindType, Object: schema + "." + t, Users: typeUsers[t]})
	}

	if len(tables.Indexes) > 0 && len(changes.OperatorClasses()) > 0 {
		classes, err := u.inspector.ExistingOperatorClasses(ctx)
		if err != nil {
			return nil, err
		}
		for _, oc := range classes {
			if !changes.HasOperatorClass(oc.Name, oc.IndexMethod) {
				continue
			}
			var users []string
			for _, idx := range tables.Indexes {
				if idx.OperatorClassOID == oc.OID {
					users = append(users, idx.Schema+"."+idx.Index)
				}
			}
			if len(users) > 0 {
				conflicts = append(conflicts, Conflict{
					Kind:   changelist.KindOperatorClass,
					Object: fmt.Sprintf("%s.%s{oid=%s, %s}", schema, oc.Name, oc.OID, oc.IndexMethod),
					Users:  users,
				})
			}
		}
	}

	if !views.HasDependency() {
		return conflicts, nil
	}
	routineKinds := []struct {
		node    dependency.NodeKind
		kind    changelist.Kind
		changed map[string]struct{}
	}{
		{dependency.KindFunction, changelist.KindFunction, changes.FunctionSignatures()},
		{dependency.KindAggregate, changelist.KindAggregate, changes.AggregateSignatures()},
	}
	for _, rk := range routineKinds {
		if len(rk.changed) == 0 {
			continue
		}
		routines, err := views.DependedRoutines(ctx, rk.node)
		if err != nil {
			return nil, err
		}
		for _, r := range routines {
			if _, ok := rk.changed[r.Signature]; ok {
				conflicts = append(conflicts, Conflict{Kind: rk.kind, Object: r.Signature, Users: nodeNames(r.Views)})
			}
		}
	}

	if len(changes.Operators()) > 0 {
		depended := views.DependedOperatorOIDs()
		ops, err := u.inspector.ExistingOperators(ctx)
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			if _, ok := depended[op.OID]; !ok || !changes.HasOperator(op.Name, op.LeftArg, op.RightArg) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Kind:   changelist.KindOperator,
				Object: fmt.Sprintf("%s.%s{oid=%s}", schema, op.Name, op.OID),
				Users:  nodeNames(views.ViewsUsing(op.OID)),
			})
		}
	}
	return conflicts, nil
}

func nodeNames(nodes []dependency.Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.String())
	}
	slices.Sort(names)
	return names
}

// Apply executes a planned upgrade in one transaction. Plans with nothing to
// do are skipped.
func Apply(ctx context.Context, exec Executor, plan *Plan) error {
	log := logging.FromContext(ctx).WithFields(logging.Fields{
		logging.SchemaFieldKey:       plan.Schema,
		logging.FromRevisionFieldKey: plan.From.String(),
		logging.ToRevisionFieldKey:   plan.To.String(),
	})
	if plan.Empty() {
		log.Info("Nothing to apply")
		return nil
	}
	if err := exec.ExecScript(ctx, plan.Script()); err != nil {
		return fmt.Errorf("apply upgrade to %s: %w", plan.To, err)
	}
	log.Info("Upgrade applied")
	return nil
}
