package main

import (
	"os"

	"github.com/okafor/toolmux/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
