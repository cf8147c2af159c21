package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
)

const lockTTL = 10 * time.Second

var (
	testConfiguration  = model.Configuration{Pois: 10, Sensors: 100, Sinks: 1, AreaSide: 10000, CoverageRadius: 800, CommunicationRadius: 1600}
	otherConfiguration = model.Configuration{Pois: 20, Sensors: 100, Sinks: 1, AreaSide: 10000, CoverageRadius: 800, CommunicationRadius: 1600}
)

func TestCountInstances(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		count, err := r.CountInstances(ctx, testConfiguration)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		require.NoError(t, r.StoreResult(ctx, testConfiguration, 1, "i1", "e1"))
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 2, "i2", "e2"))
		require.NoError(t, r.StoreResult(ctx, otherConfiguration, 3, "i3", "e3"))

		count, err = r.CountInstances(ctx, testConfiguration)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestStoreResult_WritesBothRecords(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		require.NoError(t, r.StoreResult(context.Background(), testConfiguration, 42, "instance-payload", "evaluation-payload"))

		assert.Equal(t, "instance-payload", mr.HGet(testConfiguration.InstanceKey(), "42"))
		assert.Equal(t, "evaluation-payload", mr.HGet(testConfiguration.EvaluationKey(), "42"))
	})
}

func TestStoreResult_OverwriteIsBenign(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 42, "a", "b"))
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 42, "a", "b"))

		count, err := r.CountInstances(ctx, testConfiguration)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestMissingSeeds(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 2, "i", "e"))
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 4, "i", "e"))
		require.NoError(t, r.StoreResult(ctx, otherConfiguration, 3, "i", "e"))

		missing, err := r.MissingSeeds(ctx, testConfiguration, []uint64{1, 2, 3, 4, 5})
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 3, 5}, missing)

		missing, err = r.MissingSeeds(ctx, testConfiguration, nil)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})
}

func TestTryLockBlock_OnlyFirstSucceeds(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		acquired, err := r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.True(t, acquired)

		acquired, err = r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.False(t, acquired)

		// Locks are per block and per configuration.
		acquired, err = r.TryLockBlock(ctx, testConfiguration, 20, lockTTL)
		require.NoError(t, err)
		assert.True(t, acquired)
		acquired, err = r.TryLockBlock(ctx, otherConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.True(t, acquired)

		assert.Equal(t, lockTTL, mr.TTL(testConfiguration.LockKey(0)))
	})
}

func TestTryLockBlock_StoresAcquisitionTime(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()
	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()

	now := time.Date(2023, 1, 2, 3, 4, 5, 6, time.UTC)
	r := NewRedisInstanceRepository(client, clocktesting.NewFakePassiveClock(now))
	acquired, err := r.TryLockBlock(context.Background(), testConfiguration, 0, lockTTL)
	require.NoError(t, err)
	require.True(t, acquired)

	value, err := db.Get(testConfiguration.LockKey(0))
	require.NoError(t, err)
	assert.Equal(t, "1672628645000000006", value)
}

func TestTryLockBlock_MutualExclusion(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		const workers = 16
		var wg sync.WaitGroup
		results := make(chan bool, workers)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				acquired, err := r.TryLockBlock(context.Background(), testConfiguration, 40, lockTTL)
				assert.NoError(t, err)
				results <- acquired
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		successes := 0
		for acquired := range results {
			if acquired {
				successes++
			}
		}
		assert.Equal(t, 1, successes)
	})
}

func TestTryLockBlock_SelfHealsAfterTTL(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		acquired, err := r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		require.True(t, acquired)

		mr.FastForward(lockTTL - time.Second)
		acquired, err = r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.False(t, acquired, "lock must not be reclaimable before its TTL")

		// The failed attempt above must not have extended the holder's expiry.
		mr.FastForward(time.Second)
		acquired, err = r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.True(t, acquired, "lock must be reclaimable once its TTL has elapsed")
	})
}

func TestReleaseBlock(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		acquired, err := r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		require.True(t, acquired)

		require.NoError(t, r.ReleaseBlock(ctx, testConfiguration, 0))
		assert.False(t, mr.Exists(testConfiguration.LockKey(0)))

		// Releasing twice is fine.
		require.NoError(t, r.ReleaseBlock(ctx, testConfiguration, 0))

		acquired, err = r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		assert.True(t, acquired)
	})
}

func TestGetProgress(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		ctx := context.Background()
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 1, "i", "e"))
		require.NoError(t, r.StoreResult(ctx, testConfiguration, 2, "i", "e"))
		_, err := r.TryLockBlock(ctx, testConfiguration, 0, lockTTL)
		require.NoError(t, err)
		_, err = r.TryLockBlock(ctx, testConfiguration, 40, lockTTL)
		require.NoError(t, err)
		_, err = r.TryLockBlock(ctx, otherConfiguration, 20, lockTTL)
		require.NoError(t, err)

		progress, err := r.GetProgress(ctx, testConfiguration)
		require.NoError(t, err)
		assert.Equal(t, 2, progress.Instances)
		assert.Equal(t, 2, progress.Evaluations)
		assert.ElementsMatch(t, []int{0, 40}, progress.LockedBlocks)
	})
}

func TestHealthCheck(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		assert.NoError(t, r.HealthCheck(context.Background()))
	})
}

func TestServerErrorsAreNotTransient(t *testing.T) {
	withRepository(func(r *RedisInstanceRepository, mr *miniredis.Miniredis) {
		mr.SetError("ERR something broke")
		_, err := r.CountInstances(context.Background(), testConfiguration)
		require.Error(t, err)
		assert.False(t, IsTransient(err))
	})
}

func withRepository(action func(r *RedisInstanceRepository, mr *miniredis.Miniredis)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()
	action(NewRedisInstanceRepository(client, clock.RealClock{}), db)
}
