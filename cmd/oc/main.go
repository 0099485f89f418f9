package main

import (
	"os"

	"github.com/pepegx/olang/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
