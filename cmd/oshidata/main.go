package main

import (
	"os"

	"github.com/oshikatsu-collection/oshidata/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
