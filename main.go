package main

import (
	"errors"
	"os"
)

// exitPartialFailure is returned when a run completed but left folders
// failed or canceled.
const exitPartialFailure = 2

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errFoldersFailed) {
			os.Exit(exitPartialFailure)
		}

		exitOnError(err)
	}
}
