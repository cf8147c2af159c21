package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kcmc-lab/instancegen/internal/common/app"
	"github.com/kcmc-lab/instancegen/internal/instancegen"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generates instances until every configuration has reached its target",
		RunE:  runInstanceGen,
	}
	return cmd
}

func runInstanceGen(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	return instancegen.Run(app.CreateContextWithShutdown(), config)
}
