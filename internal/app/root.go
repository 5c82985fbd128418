package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	initshim "github.com/axondata/go-initshim"
)

var (
	cfgFile string

	// RootCmd is the root command for initshim
	RootCmd = &cobra.Command{
		Use:   "initshim",
		Short: "Minimal container init and systemctl stand-in",
		Long: `initshim runs as process one in a container and answers the systemctl
calls made by package installers.

Install or symlink the binary as /sbin/init and /bin/systemctl; when invoked
under either name it behaves as the matching subcommand.

Examples:
  # Run as process one
  initshim init

  # Start a service's ExecStart= action
  initshim systemctl start nginx

  # Activate a path unit in the running process one
  initshim systemctl start reindex.path`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+initshim.DefaultConfigFile+")")
	RootCmd.PersistentFlags().StringSlice("unit-dir", nil, "unit file directory, repeatable (default: systemd system dirs)")
	RootCmd.PersistentFlags().String("runtime-dir", initshim.DefaultRuntimeDir, "directory for the pid file and activation spool")
	RootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")

	RootCmd.AddCommand(initCmd, systemctlCmd, versionCmd)
}

// Execute runs the command line. name is the base name the binary was
// invoked as; "init" and "systemctl" select the matching subcommand.
func Execute(name string, args []string) error {
	switch name {
	case "init", "systemctl":
		args = append([]string{name}, args...)
	}
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

// newViper binds the persistent flags and INITSHIM_* variables and reads
// the config file. The default file is optional; one named with --config
// is not.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	initshim.SetDefaults(v)
	initshim.BindEnv(v)

	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" {
		path = initshim.DefaultConfigFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		v.SetConfigFile("")
	}
	return v, nil
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"unit-dir":    initshim.KeyUnitDirs,
	"runtime-dir": initshim.KeyRuntimeDir,
	"log-level":   initshim.KeyLogLevel,
	"log-format":  initshim.KeyLogFormat,
}

// bindFlags binds the flags set on the command line; unset flags leave the
// file and environment values in place.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command) (initshim.Config, *zap.Logger, error) {
	v, err := newViper(cmd)
	if err != nil {
		return initshim.Config{}, nil, err
	}
	cfg, err := initshim.LoadConfig(v)
	if err != nil {
		return cfg, nil, err
	}
	log, err := initshim.NewLogger(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("configuration loaded", zap.String("file", used))
	}
	return cfg, log, nil
}
