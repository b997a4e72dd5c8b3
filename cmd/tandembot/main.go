package main

import (
	"fmt"
	"os"

	"github.com/m3rciful/tandembot/chat/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tandembot:", err)
		os.Exit(1)
	}
}
