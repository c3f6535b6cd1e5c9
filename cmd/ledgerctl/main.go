package main

import (
	"os"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
