// Command posync records prices and sales locally and syncs them to the
// remote authority.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/posync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
