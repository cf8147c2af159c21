// Package claim finds and locks the next block of seeds a worker should generate for a
// configuration.
//
// Blocks are fixed-size ranges of positions in the seed universe. They are tried in increasing
// offset order and the first one whose lock can be created is claimed. The lock expires on its
// own, so a block held by a crashed worker becomes claimable again once its TTL has elapsed.
package claim

import (
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/kcmc-lab/instancegen/internal/common/logctx"
	"github.com/kcmc-lab/instancegen/internal/common/util"
	"github.com/kcmc-lab/instancegen/internal/instancegen/metrics"
	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
	"github.com/kcmc-lab/instancegen/internal/instancegen/repository"
)

type Status int

const (
	// A block was locked and holds seeds that still need generating.
	Claimed Status = iota
	// The configuration already has every instance it needs. No lock was attempted.
	Complete
	// Every block is locked by another worker.
	Contended
	// A block was locked but every seed from it up to the target was already generated. The
	// seeds still missing lie in lower blocks held by other workers. The lock has been released.
	NoNewSeeds
)

func (s Status) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case Complete:
		return "complete"
	case Contended:
		return "contended"
	case NoNewSeeds:
		return "no_new_seeds"
	default:
		return "unknown"
	}
}

// Claim is the outcome of one attempt to find work for a configuration.
type Claim struct {
	Status        Status
	Configuration model.Configuration
	// Number of instance records that existed when the claim was made.
	Existing int
	// The target, capped at the size of the seed universe.
	Target int
	// Offset of the locked block. Only meaningful when Status is Claimed.
	Offset int
	// Seeds still missing an instance record, in universe order.
	Seeds []uint64

	repo repository.InstanceRepository
}

// Release deletes the block lock held by a Claimed claim. It is a no-op for any other status.
func (c *Claim) Release(ctx *logctx.Context) error {
	if c.Status != Claimed {
		return nil
	}
	if err := c.repo.ReleaseBlock(ctx, c.Configuration, c.Offset); err != nil {
		return errors.WithMessagef(err, "releasing block %d of %s", c.Offset, c.Configuration)
	}
	ctx.Log.Debugf("Released block %d", c.Offset)
	return nil
}

type Manager struct {
	repo       repository.InstanceRepository
	universe   model.SeedUniverse
	blockSize  int
	lockTTL    time.Duration
	retryDelay time.Duration
	clock      clock.Clock
	metrics    *metrics.Metrics
}

func NewManager(
	repo repository.InstanceRepository,
	universe model.SeedUniverse,
	blockSize int,
	lockTTL time.Duration,
	retryDelay time.Duration,
	clock clock.Clock,
) *Manager {
	return &Manager{
		repo:       repo,
		universe:   universe,
		blockSize:  blockSize,
		lockTTL:    lockTTL,
		retryDelay: retryDelay,
		clock:      clock,
		metrics:    metrics.Get(),
	}
}

// Claim decides whether c needs more instances to reach target and, if so, locks the first free
// block and works out which of its seeds still need generating.
func (m *Manager) Claim(ctx *logctx.Context, c model.Configuration, target int) (*Claim, error) {
	existing, err := m.repo.CountInstances(ctx, c)
	if err != nil {
		return nil, errors.WithMessagef(err, "counting instances of %s", c)
	}
	if target > m.universe.Len() {
		target = m.universe.Len()
	}
	claim := &Claim{
		Status:        Complete,
		Configuration: c,
		Existing:      existing,
		Target:        target,
		repo:          m.repo,
	}
	if existing >= target {
		return claim, nil
	}

	offset, locked, err := m.lockFirstFreeBlock(ctx, c, target)
	if err != nil {
		return nil, err
	}
	if !locked {
		claim.Status = Contended
		return claim, nil
	}
	claim.Status = Claimed
	claim.Offset = offset
	ctx = logctx.WithLogField(ctx, "block", offset)
	ctx.Log.Infof("Got lock on block %d", offset)

	seeds, err := m.missingSeeds(ctx, c, max(offset, existing), target)
	if err == nil && len(seeds) == 0 && existing > offset {
		// The records that were counted need not be the leading ones: a worker that crashed
		// holding a lower block leaves a gap below positions others have since filled.
		seeds, err = m.missingSeeds(ctx, c, offset, target)
	}
	if err != nil {
		m.releaseQuietly(ctx, claim)
		return nil, errors.WithMessagef(err, "listing missing seeds of %s from block %d", c, offset)
	}
	if len(seeds) == 0 {
		if err := claim.Release(ctx); err != nil {
			return nil, err
		}
		claim.Status = NoNewSeeds
		return claim, nil
	}
	claim.Seeds = seeds
	return claim, nil
}

func (m *Manager) missingSeeds(ctx *logctx.Context, c model.Configuration, from, to int) ([]uint64, error) {
	return m.repo.MissingSeeds(ctx, c, m.universe.Slice(from, to))
}

func (m *Manager) lockFirstFreeBlock(ctx *logctx.Context, c model.Configuration, target int) (int, bool, error) {
	for offset := 0; offset < target; offset += m.blockSize {
		if offset > 0 {
			if err := util.WaitFor(ctx, m.clock, m.retryDelay); err != nil {
				return 0, false, err
			}
		}
		locked, err := m.repo.TryLockBlock(ctx, c, offset, m.lockTTL)
		if err != nil {
			return 0, false, errors.WithMessagef(err, "locking block %d of %s", offset, c)
		}
		if locked {
			m.metrics.RecordBlockClaimed()
			return offset, true, nil
		}
		m.metrics.RecordLockContention()
		ctx.Log.Debugf("Block %d is locked by another worker", offset)
	}
	return 0, false, nil
}

func (m *Manager) releaseQuietly(ctx *logctx.Context, claim *Claim) {
	if err := claim.Release(ctx); err != nil {
		ctx.Log.WithError(err).Warn("Failed to release block; it will expire on its own")
	}
}
