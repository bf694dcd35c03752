package main

import (
	"os"

	"github.com/shellform-io/shellform/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
