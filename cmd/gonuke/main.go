package main

import (
	"os"

	"github.com/3leaps/gonuke/internal/cmd"
)

// Build metadata, injected via -ldflags at release time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
