package repository

import (
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// ErrTransient wraps a store error caused by a dropped connection. Operations failing this way
// may be retried later; every other store error is fatal.
type ErrTransient struct {
	Op  string
	Err error
}

func (err *ErrTransient) Error() string {
	return fmt.Sprintf("transient store failure during %s: %s", err.Op, err.Err)
}

func (err *ErrTransient) Unwrap() error {
	return err.Err
}

// IsTransient reports whether err, or any error it wraps, is an *ErrTransient.
func IsTransient(err error) bool {
	var transient *ErrTransient
	return errors.As(err, &transient)
}

// classify wraps connection-reset-like failures and network timeouts in ErrTransient and everything else with a
// stack trace.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectionReset(err) {
		return &ErrTransient{Op: op, Err: err}
	}
	return errors.Wrapf(err, "store %s failed", op)
}

func isConnectionReset(err error) bool {
	for _, target := range []error{
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		io.EOF,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
