package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kcmc-lab/instancegen/internal/common/logctx"
)

// CreateContextWithShutdown returns a context that reports done once SIGINT or SIGTERM is received.
func CreateContextWithShutdown() *logctx.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			logctx.Background().Log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return logctx.New(ctx, logctx.Background().Log)
}
