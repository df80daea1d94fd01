package cmd

import (
	"fmt"
	"gamewarden/pkg/sdk"
	"os"

	"github.com/spf13/cobra"
)

var (
	Client  *sdk.Client
	BaseURL string
)

var RootCmd = &cobra.Command{
	Use:   "gamewarden-cli",
	Short: "CLI for the gamewarden lifecycle daemon",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Client = sdk.NewClient(BaseURL)
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

func Execute() {
	RootCmd.PersistentFlags().StringVar(&BaseURL, "url", defaultURL(), "URL of the gamewarden daemon")

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func defaultURL() string {
	if u := os.Getenv("GAMEWARDEN_URL"); u != "" {
		return u
	}
	return "http://localhost:23008"
}
