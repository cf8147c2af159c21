package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestWaitFor_Elapses(t *testing.T) {
	fakeClock := clocktesting.NewFakeClock(time.Now())
	done := make(chan error, 1)
	go func() {
		done <- WaitFor(context.Background(), fakeClock, time.Minute)
	}()

	assert.Eventually(t, fakeClock.HasWaiters, 5*time.Second, time.Millisecond)
	fakeClock.Step(time.Minute)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor did not return after the clock advanced")
	}
}

func TestWaitFor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WaitFor(ctx, clock.RealClock{}, time.Hour)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor did not return after cancellation")
	}
}

func TestWaitFor_NonPositive(t *testing.T) {
	assert.NoError(t, WaitFor(context.Background(), clock.RealClock{}, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitFor(ctx, clock.RealClock{}, 0), context.Canceled)
}
