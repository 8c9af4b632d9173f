package main

import (
	"fmt"
	"os"

	"github.com/medrex/portal-authz/cmd/policy-lint/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
