// Package errs contains generic error types shared by the instancegen packages.
//
// Callers should recover these with errors.As rather than comparing messages, since they are
// normally returned wrapped with github.com/pkg/errors.
package errs

import "fmt"

// ErrInvalidArgument is returned whenever some input value cannot be accepted, e.g. a
// non-numeric token in the seed file. Message is optional.
type ErrInvalidArgument struct {
	Name    string      // Where the value came from, e.g. "seeds:3" or "configs:2:pois"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", fmt.Sprint(err.Value), err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", fmt.Sprint(err.Value), err.Name, err.Message)
}
