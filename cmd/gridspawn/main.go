package main

import (
	"os"

	"github.com/DrSkyle/gridspawn/cmd/gridspawn/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
