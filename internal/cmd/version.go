package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/update"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kstack version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kstack %s (%s)\n", version, update.GetPlatformInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
