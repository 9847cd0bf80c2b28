package main

import (
	"fmt"
	"os"

	"github.com/chosenoffset/zeta/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zeta:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
