package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/cleaner"
	dbparams "github.com/treeverse/pgpack/pkg/db/params"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/packerrors"
	"github.com/treeverse/pgpack/pkg/version"
)

var (
	ErrBadConfiguration    = fmt.Errorf("%w: bad configuration", packerrors.ErrConfig)
	ErrMissingRequiredKeys = fmt.Errorf("%w: missing required keys", ErrBadConfiguration)
	ErrBadRevision         = fmt.Errorf("%w: bad revision", ErrBadConfiguration)
	ErrNoTargetRevision    = fmt.Errorf("%w: no target revision", ErrBadConfiguration)
)

// Config is the decoded configuration. If you read a key using a viper
// accessor rather than a field of this struct, that key will *not* be
// validated.
type Config struct {
	Schema   string `mapstructure:"schema"`
	Platform string `mapstructure:"platform"`

	Database struct {
		ConnectionString      SecureString  `mapstructure:"connection_string"`
		MaxOpenConnections    int32         `mapstructure:"max_open_connections"`
		MaxIdleConnections    int32         `mapstructure:"max_idle_connections"`
		ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
		ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	} `mapstructure:"database"`

	Changelist struct {
		Dir               string `mapstructure:"dir"`
		SchemaPlaceholder string `mapstructure:"schema_placeholder"`
	} `mapstructure:"changelist"`

	Modules struct {
		Registry   string `mapstructure:"registry"`
		ScriptsDir string `mapstructure:"scripts_dir"`
	} `mapstructure:"modules"`

	Revision struct {
		// Target is read as a string so "1.10" does not decode as 1.1.
		Target OnlyString `mapstructure:"target"`
		File   string     `mapstructure:"file"`
	} `mapstructure:"revision"`

	Upgrade struct {
		CascadeTypes    Strings    `mapstructure:"cascade_types"`
		CleanPasses     Strings    `mapstructure:"clean_passes"`
		LibraryPath     string     `mapstructure:"library_path"`
		MinimumRevision OnlyString `mapstructure:"minimum_revision"`
	} `mapstructure:"upgrade"`

	Logging struct {
		Format        string  `mapstructure:"format"`
		Level         string  `mapstructure:"level"`
		Output        Strings `mapstructure:"output"`
		FileMaxSizeMB int     `mapstructure:"file_max_size_mb"`
		FilesKeep     int     `mapstructure:"files_keep"`
	} `mapstructure:"logging"`
}

// EnvPrefix prefixes environment variables overriding configuration keys,
// with "." replaced by "_".
const EnvPrefix = "PGPACK"

// SetupEnv makes viper read overrides from the environment.
func SetupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// NewConfig decodes the configuration loaded into viper and sets up the
// default logger from it.
func NewConfig() (*Config, error) {
	c := &Config{}

	// Inform viper of all expected fields. Otherwise, it fails to deserialize
	// from the environment.
	for _, key := range GetStructKeys(reflect.TypeOf(c), "mapstructure", "squash") {
		viper.SetDefault(key, nil)
	}
	setDefaults()

	err := viper.UnmarshalExact(c, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			DecodeStrings, DecodeOnlyString, mapstructure.StringToTimeDurationHookFunc())))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfiguration, err)
	}
	if err := c.setupLogger(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that decode fine but that pgpack cannot use.
func (c *Config) Validate() error {
	if c.Schema == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequiredKeys, SchemaKey)
	}
	if _, err := catalog.ParsePlatform(c.Platform); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadConfiguration, PlatformKey, err)
	}
	if _, err := cleaner.ParsePasses(c.Upgrade.CleanPasses); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadConfiguration, UpgradeCleanPassesKey, err)
	}
	if _, err := c.TargetRevision(); err != nil && !errors.Is(err, ErrNoTargetRevision) {
		return err
	}
	if _, err := c.MinimumRevision(); err != nil {
		return err
	}
	return nil
}

// RequireDatabase fails when no connection string is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.ConnectionString.SecureValue() == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequiredKeys, DatabaseConnectionStringKey)
	}
	return nil
}

func (c *Config) DatabaseParams() dbparams.Database {
	return dbparams.Database{
		ConnectionString:      c.Database.ConnectionString.SecureValue(),
		MaxOpenConnections:    c.Database.MaxOpenConnections,
		MaxIdleConnections:    c.Database.MaxIdleConnections,
		ConnectionMaxLifetime: c.Database.ConnectionMaxLifetime,
		ConnectTimeout:        c.Database.ConnectTimeout,
	}
}

func (c *Config) PlatformValue() catalog.Platform {
	p, _ := catalog.ParsePlatform(c.Platform)
	return p
}

func (c *Config) CleanPasses() []cleaner.Pass {
	passes, _ := cleaner.ParsePasses(c.Upgrade.CleanPasses)
	return passes
}

// TargetRevision returns revision.target, or the revision recorded in
// revision.file when no target is set.
func (c *Config) TargetRevision() (version.Revision, error) {
	if target := c.Revision.Target.String(); target != "" {
		rev, err := version.ParseRevision(target)
		if err != nil {
			return version.Revision{}, fmt.Errorf("%w: %s: %w", ErrBadRevision, RevisionTargetKey, err)
		}
		return rev, nil
	}
	if c.Revision.File == "" {
		return version.Revision{}, ErrNoTargetRevision
	}
	rev, err := version.ReadRevisionFile(c.Revision.File)
	if err != nil {
		return version.Revision{}, fmt.Errorf("%w: %w", ErrNoTargetRevision, err)
	}
	return rev, nil
}

// MinimumRevision returns upgrade.minimum_revision, zero when unset.
func (c *Config) MinimumRevision() (version.Revision, error) {
	s := c.Upgrade.MinimumRevision.String()
	if s == "" {
		return version.Revision{}, nil
	}
	rev, err := version.ParseRevision(s)
	if err != nil {
		return version.Revision{}, fmt.Errorf("%w: %s: %w", ErrBadRevision, UpgradeMinimumRevisionKey, err)
	}
	return rev, nil
}

func (c *Config) ToLoggerFields() logging.Fields {
	return logging.Fields{
		logging.SchemaFieldKey:   c.Schema,
		logging.PlatformFieldKey: c.Platform,
		"changelist_dir":         c.Changelist.Dir,
		"modules_registry":       c.Modules.Registry,
	}
}
