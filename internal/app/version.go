package app

import (
	"fmt"

	"github.com/spf13/cobra"

	initshim "github.com/axondata/go-initshim"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := initshim.GetVersion()
		fmt.Fprintf(cmd.OutOrStdout(), "initshim %s (%s, %s)\n", info.Version, info.Compat, info.Platform)
	},
}
