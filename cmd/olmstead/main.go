package main

import (
	"os"

	"olmstead/cmd/olmstead/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
