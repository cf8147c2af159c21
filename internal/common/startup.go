package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kcmc-lab/instancegen/internal/common/config"
)

const envPrefix = "INSTANCEGEN"

// BindCommandlineArguments binds each viper key to the flag named for it, so that flags given on
// the command line override values loaded from the config files.
func BindCommandlineArguments(flags *pflag.FlagSet, keysToFlags map[string]string) error {
	for key, name := range keysToFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			return errors.Errorf("no flag named %s to bind to %s", name, key)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "binding flag %s", name)
		}
	}
	return nil
}

// LoadConfig reads config.yaml from defaultPath, merges every user specified file on top, applies
// INSTANCEGEN_* environment overrides and unmarshals the result into cfg, which is then validated.
func LoadConfig(cfg interface{}, defaultPath string, userSpecifiedConfigs []string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultPath)
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading default config from %s", defaultPath)
	}

	for _, configPath := range userSpecifiedConfigs {
		if configPath == "" {
			continue
		}
		viper.SetConfigFile(configPath)
		if err := viper.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "merging config %s", configPath)
		}
		log.Infof("Merged config from %s", configPath)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.Unmarshal(cfg, config.CustomHooks...); err != nil {
		return errors.Wrap(err, "unmarshalling config")
	}
	return config.Validate(cfg)
}

// ServeMetrics exposes the default prometheus registry on port and returns a function that
// shuts the server down.
func ServeMetrics(port uint16) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("Metrics listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to shut down metrics server cleanly")
		}
	}
}
