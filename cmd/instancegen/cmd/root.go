package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kcmc-lab/instancegen/internal/common"
	"github.com/kcmc-lab/instancegen/internal/common/logging"
	"github.com/kcmc-lab/instancegen/internal/instancegen/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/instancegen"
)

// Flags that override a config value, keyed by the viper key they set.
var flagBindings = map[string]string{
	"seedsPath":                   "seeds",
	"configsPath":                 "configs",
	"coordinator.targetInstances": "target",
	"coordinator.kRange":          "k-range",
	"coordinator.mRange":          "m-range",
	"generator.command":           "generator",
}

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "instancegen",
		SilenceUsage: true,
		Short:        "Generates KCMC instances cooperatively with other workers sharing the same store",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := viper.BindPFlag(CustomConfigLocation, cmd.Flags().Lookup(CustomConfigLocation)); err != nil {
				return err
			}
			return common.BindCommandlineArguments(cmd.Flags(), flagBindings)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	flags.String("seeds", "", "File of whitespace separated seeds")
	flags.String("configs", "", "Configuration catalog with a header row")
	flags.Int("target", 0, "Number of instances wanted per configuration")
	flags.Int("k-range", 0, "k range passed to the generator")
	flags.Int("m-range", 0, "m range passed to the generator")
	flags.StringSlice("generator", []string{}, "Generator executable, optionally followed by arguments to pass before the protocol arguments")

	cmd.AddCommand(
		runCmd(),
		statusCmd(),
	)

	return cmd
}

func loadConfig() (configuration.InstanceGenConfiguration, error) {
	var config configuration.InstanceGenConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if err := viper.BindEnv("redis.url", "INSTANCEGEN_REDIS_URL", "REDIS_URL"); err != nil {
		return config, err
	}
	if err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if err := logging.ConfigureApplicationLogging(config.Logging); err != nil {
		return config, err
	}
	return config, nil
}
