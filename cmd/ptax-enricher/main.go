package main

import (
	"errors"
	"os"

	"github.com/damon-houk/ptax-enricher/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
