package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spboyer/veracity/internal/consensus"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Detection completed
	ExitUnavailable = 1 // Every detector failed
	ExitError       = 2 // Configuration or runtime error
)

func main() {
	err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, consensus.ErrAllModelsFailed):
		return ExitUnavailable
	default:
		// All other errors are configuration/runtime errors
		return ExitError
	}
}
