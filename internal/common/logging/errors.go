package logging

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// TopmostWithCause walks the pkg/errors Cause chain and returns the error directly preceding
// the root cause, which is the one holding the stack trace recorded where the error was created.
func TopmostWithCause(err error) error {
	type causer interface {
		Cause() error
	}

	rv := err
	for rv != nil {
		cause, ok := rv.(causer)
		if !ok {
			break
		}
		next := cause.Cause()
		if _, ok := next.(causer); !ok {
			break
		}
		rv = next
	}
	return rv
}

// WithStacktrace adds err and, if pkg/errors recorded one, its stack trace to entry.
func WithStacktrace(entry *log.Entry, err error) *log.Entry {
	entry = entry.WithError(err)
	if _, ok := TopmostWithCause(err).(fmt.Formatter); ok {
		entry = entry.WithField("stacktrace", fmt.Sprintf("%+v", TopmostWithCause(err)))
	}
	return entry
}
