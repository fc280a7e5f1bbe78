package main

import (
	"os"

	"github.com/solatis/caseflow/cmd/caseflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
