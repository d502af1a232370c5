// Command anchorsync runs anchor scripts and scenarios and inspects
// persisted anchor stores.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/anchorsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "anchorsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
