package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/treeverse/pgpack/pkg/catalog"
	"github.com/treeverse/pgpack/pkg/changelist"
)

const (
	SchemaKey     = "schema"
	DefaultSchema = "madlib"

	PlatformKey     = "platform"
	DefaultPlatform = string(catalog.PlatformAuto)

	DatabaseConnectionStringKey = "database.connection_string"

	DatabaseMaxOpenConnectionsKey     = "database.max_open_connections"
	DefaultDatabaseMaxOpenConnections = 4

	DatabaseMaxIdleConnectionsKey     = "database.max_idle_connections"
	DefaultDatabaseMaxIdleConnections = 1

	DatabaseConnectionMaxLifetimeKey     = "database.connection_max_lifetime"
	DefaultDatabaseConnectionMaxLifetime = 5 * time.Minute

	DatabaseConnectTimeoutKey     = "database.connect_timeout"
	DefaultDatabaseConnectTimeout = 30 * time.Second

	ChangelistDirKey     = "changelist.dir"
	DefaultChangelistDir = "changelists"

	ChangelistSchemaPlaceholderKey = "changelist.schema_placeholder"

	ModulesRegistryKey     = "modules.registry"
	DefaultModulesRegistry = "config/Modules.yml"

	ModulesScriptsDirKey     = "modules.scripts_dir"
	DefaultModulesScriptsDir = "modules"

	RevisionTargetKey = "revision.target"

	RevisionFileKey     = "revision.file"
	DefaultRevisionFile = "config/Version.yml"

	UpgradeCascadeTypesKey = "upgrade.cascade_types"

	UpgradeCleanPassesKey     = "upgrade.clean_passes"
	DefaultUpgradeCleanPasses = "comments,types,casts"

	UpgradeLibraryPathKey     = "upgrade.library_path"
	UpgradeMinimumRevisionKey = "upgrade.minimum_revision"

	LoggingFormatKey     = "logging.format"
	DefaultLoggingFormat = "text"

	LoggingLevelKey     = "logging.level"
	DefaultLoggingLevel = "INFO"

	LoggingOutputKey     = "logging.output"
	DefaultLoggingOutput = "-"

	LoggingFileMaxSizeMBKey     = "logging.file_max_size_mb"
	DefaultLoggingFileMaxSizeMB = 100

	LoggingFilesKeepKey     = "logging.files_keep"
	DefaultLoggingFilesKeep = 10
)

func setDefaults() {
	viper.SetDefault(SchemaKey, DefaultSchema)
	viper.SetDefault(PlatformKey, DefaultPlatform)

	viper.SetDefault(DatabaseMaxOpenConnectionsKey, DefaultDatabaseMaxOpenConnections)
	viper.SetDefault(DatabaseMaxIdleConnectionsKey, DefaultDatabaseMaxIdleConnections)
	viper.SetDefault(DatabaseConnectionMaxLifetimeKey, DefaultDatabaseConnectionMaxLifetime)
	viper.SetDefault(DatabaseConnectTimeoutKey, DefaultDatabaseConnectTimeout)

	viper.SetDefault(ChangelistDirKey, DefaultChangelistDir)
	viper.SetDefault(ChangelistSchemaPlaceholderKey, changelist.DefaultSchemaPlaceholder)

	viper.SetDefault(ModulesRegistryKey, DefaultModulesRegistry)
	viper.SetDefault(ModulesScriptsDirKey, DefaultModulesScriptsDir)

	// OnlyString fields need a string default, nil does not decode
	viper.SetDefault(RevisionTargetKey, "")
	viper.SetDefault(RevisionFileKey, DefaultRevisionFile)

	viper.SetDefault(UpgradeCascadeTypesKey, []string{})
	viper.SetDefault(UpgradeCleanPassesKey, DefaultUpgradeCleanPasses)
	viper.SetDefault(UpgradeLibraryPathKey, "")
	viper.SetDefault(UpgradeMinimumRevisionKey, "")

	viper.SetDefault(LoggingFormatKey, DefaultLoggingFormat)
	viper.SetDefault(LoggingLevelKey, DefaultLoggingLevel)
	viper.SetDefault(LoggingOutputKey, DefaultLoggingOutput)
	viper.SetDefault(LoggingFileMaxSizeMBKey, DefaultLoggingFileMaxSizeMB)
	viper.SetDefault(LoggingFilesKeepKey, DefaultLoggingFilesKeep)
}
