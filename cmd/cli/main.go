package main

import "gamewarden/internal/cli/cmd"

func main() {
	cmd.Execute()
}
