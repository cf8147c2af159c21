package main

import (
	"os"

	"github.com/kcmc-lab/instancegen/cmd/instancegen/cmd"
	"github.com/kcmc-lab/instancegen/internal/common/logging"
)

func main() {
	logging.ConfigureCommandLineLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
