package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/treeverse/pgpack/pkg/config"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "pgpack",
	Short:        "pgpack upgrades a database schema of extension objects in place",
	Version:      version.Version,
	SilenceUsage: true,
	// errors are reported by Execute
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		DieErr(err)
	}
}

//nolint:gochecknoinits
func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.pgpack.yaml)")
	rootCmd.PersistentFlags().String("schema", config.DefaultSchema, "managed schema")
	rootCmd.PersistentFlags().String("platform", config.DefaultPlatform, "database platform: auto, postgres or greenplum")
	rootCmd.PersistentFlags().Bool("no-color", false, "don't use fancy output colors")
	_ = viper.BindPFlag(config.SchemaKey, rootCmd.PersistentFlags().Lookup("schema"))
	_ = viper.BindPFlag(config.PlatformKey, rootCmd.PersistentFlags().Lookup("platform"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if noColor, _ := rootCmd.PersistentFlags().GetBool("no-color"); noColor {
		DisableColors()
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigFile(filepath.Join(getHomeDir(), ".pgpack.yaml"))
	}
	config.SetupEnv()

	err := viper.ReadInConfig()
	var errNotFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case cfgFile == "" && (errors.As(err, &errNotFound) || errors.Is(err, os.ErrNotExist)):
		// running on defaults and environment
	default:
		DieFmt("Failed to read config file %s: %s", viper.ConfigFileUsed(), err)
	}
}

// loadConfig decodes and validates the configuration of the executed command.
func loadConfig() *config.Config {
	cfg, err := config.NewConfig()
	if err != nil {
		DieErr(err)
	}
	if err := cfg.Validate(); err != nil {
		DieErr(err)
	}
	logging.Default().
		WithField("file", viper.ConfigFileUsed()).
		WithFields(cfg.ToLoggerFields()).
		Debug("Config loaded")
	return cfg
}

// getHomeDir find and return the home directory
func getHomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		DieErr(fmt.Errorf("get home directory: %w", err))
	}
	return home
}
