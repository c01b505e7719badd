// Command vquery runs relational query plans over committed tables and proves
// every operator.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vquery/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
