package main

import (
	"os"

	"github.com/tilemason/tilemason/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
