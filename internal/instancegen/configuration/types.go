package configuration

import (
	"time"

	"github.com/kcmc-lab/instancegen/internal/common/config"
	"github.com/kcmc-lab/instancegen/internal/common/logging"
)

type InstanceGenConfiguration struct {
	Logging logging.Config
	// Shared store used for locks and generated records
	Redis config.RedisConfig
	// Port to expose prometheus metrics on; 0 disables the metrics server
	MetricsPort uint16
	// Whitespace separated seed file, shared by every worker
	SeedsPath string `validate:"required"`
	// Comma separated configuration catalog with a header row
	ConfigsPath string `validate:"required"`
	// Time to wait before doing anything, giving the store time to come up alongside the workers
	StartupDelay time.Duration `validate:"gte=0"`
	// Number of times to ping the store before giving up at startup
	StartupPingAttempts uint `validate:"gte=1"`
	Generator           GeneratorConfig
	Coordinator         CoordinatorConfig
}

type GeneratorConfig struct {
	// Generator executable followed by any arguments to pass before the protocol arguments
	Command []string `validate:"required,min=1"`
	// Longest stdout line accepted from the generator
	MaxLineBytes int `validate:"gt=0"`
	// How long the generator may take to exit once its output has been read
	ExitTimeout time.Duration `validate:"gt=0"`
}

type CoordinatorConfig struct {
	// Number of instances wanted per configuration
	TargetInstances int `validate:"gt=0"`
	KRange          int `validate:"gte=0"`
	MRange          int `validate:"gte=0"`
	// Number of seed positions covered by one lock
	BlockSize int `validate:"gt=0"`
	// Expiry of a block lock. Must exceed the time needed to generate a full batch.
	LockTTL time.Duration `validate:"gt=0"`
	// Pause between consecutive failed lock attempts within one scan
	LockRetryDelay time.Duration `validate:"gte=0"`
	// Pause after a dropped store connection before moving on to the next configuration
	TransientRetryDelay time.Duration `validate:"gte=0"`
	// Pause before another sweep when the last one only found blocks locked by other workers
	ContendedPassDelay time.Duration `validate:"gte=0"`
	// Upper bound on the number of sweeps; 0 means sweep until converged
	MaxPasses int `validate:"gte=0"`
}
