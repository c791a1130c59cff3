package main

import (
	"fmt"
	"os"

	"github.com/midoriai/agents-runner/internal/runnercli"
)

func main() {
	if err := runnercli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
