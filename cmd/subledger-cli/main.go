package main

import (
	"os"

	"github.com/platinummonkey/subledger/pkg/cli"
)

func main() {
	// cobra reports the error itself
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
