package logctx

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackground(t *testing.T) {
	ctx := Background()
	assert.Equal(t, context.Background(), ctx.Context)
	require.NotNil(t, ctx.Log)
}

func TestWithLogFields(t *testing.T) {
	ctx := WithLogField(Background(), "configuration", "KCMC:1:2:3:4:5:6")
	ctx = WithLogFields(ctx, logrus.Fields{"block": 20})
	assert.Equal(t, "KCMC:1:2:3:4:5:6", ctx.Log.Data["configuration"])
	assert.Equal(t, 20, ctx.Log.Data["block"])
	assert.Equal(t, context.Background(), ctx.Context)
}

func TestWithCancel_KeepsLogger(t *testing.T) {
	parent := WithLogField(Background(), "worker", "w1")
	ctx, cancel := WithCancel(parent)
	cancel()
	<-ctx.Done()
	assert.Equal(t, parent.Log, ctx.Log)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(Background(), 50*time.Millisecond)
	defer cancel()
	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("context did not time out")
	}
}

func TestErrGroup_CancelsOnError(t *testing.T) {
	g, ctx := ErrGroup(Background())
	g.Go(func() error {
		return context.Canceled
	})
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}
