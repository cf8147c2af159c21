package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
)

type InstanceRepository interface {
	// CountInstances returns the number of instance records stored for c.
	CountInstances(ctx context.Context, c model.Configuration) (int, error)
	// MissingSeeds returns, in order, the seeds that have no instance record for c.
	MissingSeeds(ctx context.Context, c model.Configuration, seeds []uint64) ([]uint64, error)
	// TryLockBlock atomically creates the lock for the block at offset if it does not exist,
	// with the given expiry. It reports whether this call created it.
	TryLockBlock(ctx context.Context, c model.Configuration, offset int, ttl time.Duration) (bool, error)
	// ReleaseBlock deletes the lock for the block at offset. Releasing a missing lock is not an error.
	ReleaseBlock(ctx context.Context, c model.Configuration, offset int) error
	// StoreResult writes the instance and evaluation records for seed in one transaction.
	StoreResult(ctx context.Context, c model.Configuration, seed uint64, instance string, evaluation string) error
	// GetProgress summarises what is stored for c.
	GetProgress(ctx context.Context, c model.Configuration) (Progress, error)
	HealthCheck(ctx context.Context) error
}

type Progress struct {
	Instances   int
	Evaluations int
	// Offsets of the blocks currently locked.
	LockedBlocks []int
}

type RedisInstanceRepository struct {
	db    redis.UniversalClient
	clock clock.PassiveClock
}

func NewRedisInstanceRepository(db redis.UniversalClient, clock clock.PassiveClock) *RedisInstanceRepository {
	return &RedisInstanceRepository{db: db, clock: clock}
}

func (r *RedisInstanceRepository) HealthCheck(ctx context.Context) error {
	return classify("ping", r.db.Ping(ctx).Err())
}

func (r *RedisInstanceRepository) CountInstances(ctx context.Context, c model.Configuration) (int, error) {
	count, err := r.db.HLen(ctx, c.InstanceKey()).Result()
	if err != nil {
		return 0, classify("count instances", err)
	}
	return int(count), nil
}

func (r *RedisInstanceRepository) MissingSeeds(ctx context.Context, c model.Configuration, seeds []uint64) ([]uint64, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.BoolCmd, len(seeds))
	_, err := r.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, seed := range seeds {
			cmds[i] = pipe.HExists(ctx, c.InstanceKey(), seedField(seed))
		}
		return nil
	})
	if err != nil {
		return nil, classify("check instances", err)
	}

	missing := make([]uint64, 0, len(seeds))
	for i, cmd := range cmds {
		if !cmd.Val() {
			missing = append(missing, seeds[i])
		}
	}
	return missing, nil
}

func (r *RedisInstanceRepository) TryLockBlock(ctx context.Context, c model.Configuration, offset int, ttl time.Duration) (bool, error) {
	// SET NX EX creates and arms the expiry in one step. A failed attempt leaves the holder's
	// expiry untouched, so an abandoned lock always lapses ttl after it was taken.
	acquired, err := r.db.SetNX(ctx, c.LockKey(offset), r.clock.Now().UnixNano(), ttl).Result()
	if err != nil {
		return false, classify("lock block", err)
	}
	return acquired, nil
}

func (r *RedisInstanceRepository) ReleaseBlock(ctx context.Context, c model.Configuration, offset int) error {
	return classify("release block", r.db.Del(ctx, c.LockKey(offset)).Err())
}

func (r *RedisInstanceRepository) StoreResult(ctx context.Context, c model.Configuration, seed uint64, instance string, evaluation string) error {
	field := seedField(seed)
	_, err := r.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.InstanceKey(), field, instance)
		pipe.HSet(ctx, c.EvaluationKey(), field, evaluation)
		return nil
	})
	return classify("store result", err)
}

func (r *RedisInstanceRepository) GetProgress(ctx context.Context, c model.Configuration) (Progress, error) {
	var instances, evaluations *redis.IntCmd
	_, err := r.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		instances = pipe.HLen(ctx, c.InstanceKey())
		evaluations = pipe.HLen(ctx, c.EvaluationKey())
		return nil
	})
	if err != nil {
		return Progress{}, classify("read progress", err)
	}

	progress := Progress{Instances: int(instances.Val()), Evaluations: int(evaluations.Val())}
	iter := r.db.Scan(ctx, 0, c.LockKeyPattern(), 100).Iterator()
	for iter.Next(ctx) {
		if offset, ok := c.LockOffset(iter.Val()); ok {
			progress.LockedBlocks = append(progress.LockedBlocks, offset)
		}
	}
	if err := iter.Err(); err != nil {
		return Progress{}, classify("scan locks", err)
	}
	return progress, nil
}

func seedField(seed uint64) string {
	return strconv.FormatUint(seed, 10)
}
