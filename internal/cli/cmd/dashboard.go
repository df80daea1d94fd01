package cmd

import (
	"gamewarden/internal/cli/ui"
)

func RunDashboard() {
	for {
		name := ui.RunDashboard(Client)
		if name == "" {
			return
		}
		if back := ui.RunConsole(Client, name); !back {
			return
		}
	}
}
