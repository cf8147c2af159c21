package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrInvalidArgument_Error(t *testing.T) {
	tests := map[string]struct {
		err  *ErrInvalidArgument
		want string
	}{
		"no message": {
			err:  &ErrInvalidArgument{Name: "seeds:1", Value: "abc"},
			want: `value "abc" is invalid for field "seeds:1"`,
		},
		"message": {
			err:  &ErrInvalidArgument{Name: "configs:2:pois", Value: -1, Message: "must be non-negative"},
			want: `value "-1" is invalid for field "configs:2:pois"; must be non-negative`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrInvalidArgument_As(t *testing.T) {
	err := errors.WithMessage(&ErrInvalidArgument{Name: "x", Value: 1}, "loading seeds")
	var target *ErrInvalidArgument
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "x", target.Name)
}
