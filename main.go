package main

import (
	"fmt"
	"os"

	"github.com/zhubert/claudway/cmd"
	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/logger"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	err := cmd.Execute()
	code := errors.ExitCode(err)
	switch {
	case err == nil:
	case code == errors.ExitCancelled:
		logger.Info("cw: %v", err)
		fmt.Fprintln(os.Stderr, "Cancelled.")
	default:
		logger.Error("cw: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	logger.Close()
	os.Exit(code)
}
