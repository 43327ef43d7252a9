package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"muteguard/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", services.UserMessage(err))
			if detail := err.Error(); detail != services.UserMessage(err) {
				fmt.Fprintln(os.Stderr, "detail:", detail)
			}
		}
		os.Exit(services.ExitCode(err))
	}
}
