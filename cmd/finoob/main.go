package main

import (
	"os"

	"github.com/finoob/finoob/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
