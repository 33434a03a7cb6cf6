package main

import (
	"context"
	"os"

	"github.com/dorkodu/pharpub/pkg/cli"
)

var version = "dev"

func main() {
	cfg := cli.NewConfig()
	cfg.Version = version

	if err := cli.NewCLI(cfg).ExecuteContext(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
