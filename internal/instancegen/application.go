package instancegen

import (
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/kcmc-lab/instancegen/internal/common"
	"github.com/kcmc-lab/instancegen/internal/common/logctx"
	"github.com/kcmc-lab/instancegen/internal/common/util"
	"github.com/kcmc-lab/instancegen/internal/instancegen/configuration"
	"github.com/kcmc-lab/instancegen/internal/instancegen/coordinator"
	"github.com/kcmc-lab/instancegen/internal/instancegen/generator"
	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
	"github.com/kcmc-lab/instancegen/internal/instancegen/repository"
)

const storePingDelay = time.Second

// Run loads the seed universe and configuration catalog, connects to the store and generates
// instances until every configuration has reached its target or ctx is cancelled.
func Run(ctx *logctx.Context, config configuration.InstanceGenConfiguration) error {
	ctx = logctx.WithLogField(ctx, "worker", util.NewWorkerID())
	clk := clock.RealClock{}

	if config.MetricsPort != 0 {
		shutdownMetricsServer := common.ServeMetrics(config.MetricsPort)
		defer shutdownMetricsServer()
	}

	//////////////////////////////////////////////////////////////////////////
	// Inputs
	//////////////////////////////////////////////////////////////////////////
	universe, err := loadSeeds(config.SeedsPath)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(config.ConfigsPath)
	if err != nil {
		return err
	}
	ctx.Log.Infof("Loaded %d seeds and %d configurations", universe.Len(), len(catalog))

	if config.StartupDelay > 0 {
		ctx.Log.Infof("Waiting %s before starting", config.StartupDelay)
		if err := util.WaitFor(ctx, clk, config.StartupDelay); err != nil {
			return err
		}
	}

	//////////////////////////////////////////////////////////////////////////
	// Store
	//////////////////////////////////////////////////////////////////////////
	repo, closeStore, err := openStore(ctx, config, clk)
	if err != nil {
		return err
	}
	defer closeStore()

	//////////////////////////////////////////////////////////////////////////
	// Generation
	//////////////////////////////////////////////////////////////////////////
	driver := generator.NewDriver(config.Generator.Command, config.Generator.MaxLineBytes, config.Generator.ExitTimeout)
	return coordinator.NewCoordinator(catalog, universe, repo, driver, config.Coordinator, clk).Run(ctx)
}

// Status writes one line per catalog configuration with the number of instance records,
// evaluation records and held block locks. It never modifies the store.
func Status(ctx *logctx.Context, config configuration.InstanceGenConfiguration, out io.Writer) error {
	catalog, err := loadCatalog(config.ConfigsPath)
	if err != nil {
		return err
	}
	repo, closeStore, err := openStore(ctx, config, clock.RealClock{})
	if err != nil {
		return err
	}
	defer closeStore()

	for _, c := range catalog {
		progress, err := repo.GetProgress(ctx, c)
		if err != nil {
			return errors.WithMessagef(err, "reading progress of %s", c)
		}
		if _, err := fmt.Fprintf(out, "%s %d %d %d\n", c, progress.Instances, progress.Evaluations, len(progress.LockedBlocks)); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func loadSeeds(path string) (model.SeedUniverse, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return model.SeedUniverse{}, errors.WithStack(err)
	}
	return model.LoadSeedsFile(expanded)
}

func loadCatalog(path string) ([]model.Configuration, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return model.LoadConfigurationsFile(expanded)
}

// openStore connects to the store and waits until it answers, giving up after the configured
// number of pings.
func openStore(ctx *logctx.Context, config configuration.InstanceGenConfiguration, clk clock.PassiveClock) (*repository.RedisInstanceRepository, func(), error) {
	options, err := config.Redis.AsUniversalOptions()
	if err != nil {
		return nil, nil, err
	}
	db := redis.NewUniversalClient(options)
	closeStore := func() { util.CloseResource("redis client", db) }
	repo := repository.NewRedisInstanceRepository(db, clk)

	err = retry.Do(
		func() error { return repo.HealthCheck(ctx) },
		retry.Context(ctx),
		retry.Attempts(config.StartupPingAttempts),
		retry.Delay(storePingDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			ctx.Log.WithError(err).Warnf("Store not ready (attempt %d of %d)", n+1, config.StartupPingAttempts)
		}),
	)
	if err != nil {
		closeStore()
		return nil, nil, errors.WithMessagef(err, "connecting to store at %v", options.Addrs)
	}
	return repo, closeStore, nil
}
