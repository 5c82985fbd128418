package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	initshim "github.com/axondata/go-initshim"
)

var systemctlCmd = &cobra.Command{
	Use:   "systemctl VERB [UNIT...]",
	Short: "Answer a systemctl call",
	Long: `Answer a systemctl call. start, stop, reload and restart run the unit's
Exec actions; start and stop on a .path unit are handed to the running
process one. Every other verb is accepted and ignored.

The command always exits 0.`,
	DisableFlagParsing: true,
	RunE:               runSystemctl,
}

func runSystemctl(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		// Installer scripts must not fail on our configuration problems.
		fmt.Fprintf(os.Stderr, "systemctl: %v, using defaults\n", err)
		cfg, log = fallback()
	}
	defer func() { _ = log.Sync() }()

	store := initshim.NewStore(log, cfg.UnitDirs...)
	ctl := initshim.NewController(store, &initshim.ExecExecutor{}, log)
	remote := initshim.NewRemoteActivator(cfg.RuntimeDir, log)

	initshim.NewMultiplexer(ctl, remote, log).Dispatch(cmd.Context(), args...)
	return nil
}

func fallback() (initshim.Config, *zap.Logger) {
	cfg, err := initshim.LoadConfig(viper.New())
	if err != nil {
		return cfg, zap.NewNop()
	}
	log, err := initshim.NewLogger(cfg.Log)
	if err != nil {
		return cfg, zap.NewNop()
	}
	return cfg, log
}
