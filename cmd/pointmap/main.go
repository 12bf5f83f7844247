package main

import (
	"os"

	"github.com/c360/pointmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
