package cmd

import (
	"log"

	"github.com/josephlewis42/tinysh/core/config"
	"github.com/spf13/cobra"
)

// initCmd writes a configuration to serve the shell from
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Initialize a configuration and SSH host key, in the current directory by default.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		logger := log.New(cmd.ErrOrStderr(), "", 0)

		_, err := config.Initialize(dir, logger)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
