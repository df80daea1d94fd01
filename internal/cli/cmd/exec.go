package cmd

import (
	"gamewarden/pkg/sdk"
	"strings"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec [name] [command...]",
	Short: "Run a single RCON command on a server",
	Example: `  gamewarden-cli exec palworld ShowPlayers
  gamewarden-cli exec palworld Broadcast Restarting_soon`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name, command := args[0], strings.Join(args[1:], " ")
		runOperation(func(n string) (*sdk.OperationResult, error) { return Client.Exec(n, command) }, name)
	},
}

func init() {
	RootCmd.AddCommand(execCmd)
}
