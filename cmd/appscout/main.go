package main

import (
	"fmt"
	"os"

	"github.com/fernwell-systems/appscout/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(app.ExitCode(err))
	}
}
