package app

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	initshim "github.com/axondata/go-initshim"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run as process one",
	Long: `Run as the container's process one: start the managed service, watch the
registered path units, and stop the managed service once on SIGINT, SIGTERM
or SIGQUIT. SIGHUP applies path activations queued by systemctl.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("version", initshim.Version),
		zap.Strings("unit_dirs", cfg.UnitDirs),
		zap.Stringer("managed_service", cfg.ManagedService))

	return initshim.NewSupervisor(cfg, log).Run(cmd.Context())
}
