package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kcmc-lab/instancegen/internal/common/logctx"
	"github.com/kcmc-lab/instancegen/internal/instancegen"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Prints instance, evaluation and lock counts for every configuration",
		RunE:  printStatus,
	}
	cmd.Flags().Duration(
		"timeout",
		time.Minute,
		"Duration after which the command gives up")
	return cmd
}

func printStatus(cmd *cobra.Command, _ []string) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := logctx.WithTimeout(logctx.Background(), timeout)
	defer cancel()
	return instancegen.Status(ctx, config, cmd.OutOrStdout())
}
