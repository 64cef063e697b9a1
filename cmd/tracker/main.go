package main

import (
	"fmt"
	"os"

	"github.com/BuzzLyutic/task-tracker/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.NewRootCmd(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
