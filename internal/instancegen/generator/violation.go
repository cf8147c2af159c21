package generator

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
)

type ViolationReason string

const (
	// Stdout ended before every requested seed produced its two lines.
	ShortOutput ViolationReason = "short output"
	// The generator exited unsuccessfully, or had to be killed after its output was consumed.
	NonZeroExit ViolationReason = "non-zero exit"
	// A line was empty or contained bytes outside printable ASCII.
	MalformedLine ViolationReason = "malformed line"
	// A line exceeded the configured maximum line length.
	LineTooLong ViolationReason = "line too long"
	// Non-blank output followed the two lines of the last seed.
	TrailingOutput ViolationReason = "trailing output"
)

// ProtocolViolation is returned when the generator does not honour the two-lines-per-seed
// stdout contract for a batch. Pairs handed out before the violation are valid.
type ProtocolViolation struct {
	Reason        ViolationReason
	Configuration model.Configuration
	Seeds         []uint64
	// Number of complete pairs read before the violation.
	PairsRead int
	// 1-based stdout line the violation was detected on; 0 when not tied to a line.
	Line int
	Err  error
}

func (v *ProtocolViolation) Error() string {
	s := fmt.Sprintf("generator protocol violation (%s) for %s after %d of %d pairs", v.Reason, v.Configuration, v.PairsRead, len(v.Seeds))
	if v.Line > 0 {
		s += fmt.Sprintf(" at stdout line %d", v.Line)
	}
	if v.Err != nil {
		s += ": " + v.Err.Error()
	}
	return s
}

func (v *ProtocolViolation) Unwrap() error {
	return v.Err
}

// AsProtocolViolation returns the ProtocolViolation in err's chain, if any.
func AsProtocolViolation(err error) (*ProtocolViolation, bool) {
	var violation *ProtocolViolation
	if errors.As(err, &violation) {
		return violation, true
	}
	return nil, false
}
