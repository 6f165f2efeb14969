package main

import (
	"fmt"
	"os"

	"github.com/roach88/tokenstream/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "streamctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
