// Package coordinator drives the sweep over the configuration catalog until every configuration
// has reached its target number of instances.
package coordinator

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/kcmc-lab/instancegen/internal/common/logctx"
	"github.com/kcmc-lab/instancegen/internal/common/logging"
	"github.com/kcmc-lab/instancegen/internal/common/util"
	"github.com/kcmc-lab/instancegen/internal/instancegen/claim"
	"github.com/kcmc-lab/instancegen/internal/instancegen/configuration"
	"github.com/kcmc-lab/instancegen/internal/instancegen/generator"
	"github.com/kcmc-lab/instancegen/internal/instancegen/metrics"
	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
	"github.com/kcmc-lab/instancegen/internal/instancegen/repository"
)

// Generator produces instance/evaluation pairs for a batch of seeds.
type Generator interface {
	Generate(ctx *logctx.Context, req generator.Request, handle func(generator.Pair) error) (int, error)
}

// Result describes what one unit of work did for a configuration.
type Result struct {
	Configuration model.Configuration
	Status        claim.Status
	// Instance records that existed before this unit of work.
	Previous int
	// Pairs written to the store by this unit of work.
	Generated int
}

type Coordinator struct {
	configurations []model.Configuration
	claims         *claim.Manager
	repo           repository.InstanceRepository
	generator      Generator
	config         configuration.CoordinatorConfig
	clock          clock.Clock
	progress       io.Writer
	metrics        *metrics.Metrics
}

func NewCoordinator(
	configurations []model.Configuration,
	universe model.SeedUniverse,
	repo repository.InstanceRepository,
	generator Generator,
	config configuration.CoordinatorConfig,
	clock clock.Clock,
) *Coordinator {
	return &Coordinator{
		configurations: configurations,
		claims:         claim.NewManager(repo, universe, config.BlockSize, config.LockTTL, config.LockRetryDelay, clock),
		repo:           repo,
		generator:      generator,
		config:         config,
		clock:          clock,
		progress:       os.Stdout,
		metrics:        metrics.Get(),
	}
}

// WithProgress sends progress lines to w instead of stdout.
func (c *Coordinator) WithProgress(w io.Writer) *Coordinator {
	c.progress = w
	return c
}

// Run sweeps the catalog until a pass neither generates anything nor leaves seeds below the
// target in blocks locked by other workers. Protocol violations seen in the final pass are returned together once the loop
// has otherwise converged.
func (c *Coordinator) Run(ctx *logctx.Context) error {
	for pass := 1; ; pass++ {
		c.metrics.RecordPass()
		passCtx := logctx.WithLogField(ctx, "pass", pass)
		passCtx.Log.Infof("Starting pass over %d configurations", len(c.configurations))

		outcome, err := c.sweep(passCtx)
		if err != nil {
			return err
		}
		if !outcome.repeat {
			if outcome.violations != nil {
				return outcome.violations.ErrorOrNil()
			}
			passCtx.Log.Info("All configurations have reached their target")
			return nil
		}
		if c.config.MaxPasses > 0 && pass >= c.config.MaxPasses {
			passCtx.Log.Warnf("Stopping after %d passes without converging", pass)
			return outcome.violations.ErrorOrNil()
		}
		if outcome.generated == 0 && outcome.contended {
			passCtx.Log.Debugf("Only found blocks held by other workers; waiting %s", c.config.ContendedPassDelay)
			if err := util.WaitFor(ctx, c.clock, c.config.ContendedPassDelay); err != nil {
				return err
			}
		}
	}
}

type passOutcome struct {
	repeat     bool
	contended  bool
	generated  int
	violations *multierror.Error
}

func (c *Coordinator) sweep(ctx *logctx.Context) (passOutcome, error) {
	outcome := passOutcome{}
	for _, cfg := range c.configurations {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		result, err := c.GenerateConfiguration(ctx, cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, ctxErr
			}
			if _, ok := generator.AsProtocolViolation(err); ok {
				c.metrics.RecordError(metrics.ErrorKindProtocolViolation)
				ctx.Log.WithError(err).WithField("configuration", cfg.String()).Error("Generator broke the output protocol")
				outcome.violations = multierror.Append(outcome.violations, err)
			} else if repository.IsTransient(err) {
				c.metrics.RecordError(metrics.ErrorKindTransient)
				ctx.Log.WithError(err).Warnf("Lost connection to the store; moving on in %s", c.config.TransientRetryDelay)
				outcome.repeat = true
				if err := util.WaitFor(ctx, c.clock, c.config.TransientRetryDelay); err != nil {
					return outcome, err
				}
				continue
			} else {
				c.metrics.RecordError(metrics.ErrorKindFatal)
				logging.WithStacktrace(ctx.Log, err).Error("Giving up")
				return outcome, err
			}
		}

		c.reportProgress(ctx, result)
		if result.Generated > 0 {
			outcome.repeat = true
			outcome.generated += result.Generated
		}
		if result.Status == claim.Contended || result.Status == claim.NoNewSeeds {
			outcome.repeat = true
			outcome.contended = true
		}
	}
	return outcome, nil
}

// GenerateConfiguration claims a block of cfg, runs the generator over the seeds it still lacks and
// writes every pair to the store as it arrives. The block lock is released before returning.
func (c *Coordinator) GenerateConfiguration(ctx *logctx.Context, cfg model.Configuration) (Result, error) {
	ctx = logctx.WithLogField(ctx, "configuration", cfg.String())
	cl, err := c.claims.Claim(ctx, cfg, c.config.TargetInstances)
	if err != nil {
		return Result{Configuration: cfg}, err
	}
	result := Result{Configuration: cfg, Status: cl.Status, Previous: cl.Existing}
	c.metrics.RecordOutcome(cl.Status.String())
	if cl.Status != claim.Claimed {
		return result, nil
	}

	ctx = logctx.WithLogFields(ctx, logrus.Fields{"block": cl.Offset, "seeds": len(cl.Seeds)})
	defer func() {
		if err := cl.Release(ctx); err != nil {
			ctx.Log.WithError(err).Warn("Failed to release block; it will expire on its own")
		}
	}()

	req := generator.Request{
		Configuration: cfg,
		KRange:        c.config.KRange,
		MRange:        c.config.MRange,
		Seeds:         cl.Seeds,
	}
	start := c.clock.Now()
	ctx.Log.Infof("Generating %d instances from block %d", len(cl.Seeds), cl.Offset)
	generated, err := c.generator.Generate(ctx, req, func(pair generator.Pair) error {
		if err := c.repo.StoreResult(ctx, cfg, pair.Seed, pair.Instance, pair.Evaluation); err != nil {
			return err
		}
		c.metrics.RecordInstanceGenerated()
		return nil
	})
	c.metrics.RecordBatchDuration(c.clock.Since(start))
	result.Generated = generated
	if err != nil {
		return result, errors.WithMessagef(err, "generating block %d of %s (%d seeds)", cl.Offset, cfg, len(cl.Seeds))
	}
	return result, nil
}

func (c *Coordinator) reportProgress(ctx *logctx.Context, result Result) {
	line := fmt.Sprintf("%s %d %d", result.Configuration, result.Previous, result.Generated)
	ctx.Log.WithField("status", result.Status.String()).Debug(line)
	if _, err := fmt.Fprintln(c.progress, line); err != nil {
		ctx.Log.WithError(err).Warn("Failed to write progress line")
	}
}
