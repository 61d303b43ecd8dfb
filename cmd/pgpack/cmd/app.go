package cmd

import (
	"context"
	"os"

	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/changelist"
	"github.com/treeverse/pgpack/pkg/config"
	"github.com/treeverse/pgpack/pkg/db"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/modules"
	"github.com/treeverse/pgpack/pkg/templater"
	"github.com/treeverse/pgpack/pkg/upgrade"
)

// session is an open connection to the database holding the managed schema.
type session struct {
	db        *db.PgxDatabase
	inspector *catalog.Inspector
}

func (s *session) Close() {
	s.db.Close()
}

// connect opens the database and detects the platform the managed schema
// lives on.
func connect(ctx context.Context, cfg *config.Config) (*session, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := db.ConnectDBPool(ctx, cfg.DatabaseParams())
	if err != nil {
		return nil, err
	}
	database := db.NewPgxDatabase(pool)
	q := catalog.NewDBQuerier(database)
	target, err := catalog.DetectTarget(ctx, q, cfg.Schema, cfg.PlatformValue())
	if err != nil {
		database.Close()
		return nil, err
	}
	logging.FromContext(ctx).WithFields(logging.Fields{
		logging.PlatformFieldKey: string(target.Platform),
		"server_major":           target.ServerMajor,
	}).Debug("Detected database platform")
	return &session{db: database, inspector: catalog.NewInspector(q, target)}, nil
}

func newResolver(cfg *config.Config) *changelist.Resolver {
	return changelist.NewResolver(
		changelist.NewStore(os.DirFS(cfg.Changelist.Dir)),
		cfg.Schema,
		changelist.WithSchemaPlaceholder(cfg.Changelist.SchemaPlaceholder),
	)
}

func newUpgrader(cfg *config.Config, s *session) (*upgrade.Upgrader, error) {
	mods, err := modules.LoadRegistry(cfg.Modules.Registry)
	if err != nil {
		return nil, err
	}
	minimum, err := cfg.MinimumRevision()
	if err != nil {
		return nil, err
	}
	target := s.inspector.Target()
	scripts := templater.NewRenderer(os.DirFS(cfg.Modules.ScriptsDir), templater.Data{
		Schema:      target.Schema,
		LibraryPath: cfg.Upgrade.LibraryPath,
		Platform:    string(target.Platform),
		ServerMajor: target.ServerMajor,
	})
	return upgrade.New(newResolver(cfg), s.inspector, mods, scripts,
		upgrade.WithMinimumRevision(minimum),
		upgrade.WithCascadeTypes(cfg.Upgrade.CascadeTypes...),
		upgrade.WithCleanPasses(cfg.CleanPasses()...),
	), nil
}
