package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcmc-lab/instancegen/internal/common/errs"
)

func TestLoadSeeds_DeduplicatesAndSorts(t *testing.T) {
	universe, err := LoadSeeds(strings.NewReader("42 7\t7\n\n 1000\r\n3 42"))
	require.NoError(t, err)
	assert.Equal(t, 4, universe.Len())
	assert.Equal(t, []uint64{3, 7, 42, 1000}, universe.Slice(0, universe.Len()))
}

func TestLoadSeeds_OrderIndependentOfInput(t *testing.T) {
	a, err := LoadSeeds(strings.NewReader("5 4 3 2 1"))
	require.NoError(t, err)
	b, err := LoadSeeds(strings.NewReader("1\n2\n3\n4\n5\n5"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadSeeds_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"whitespace":  " \n\t ",
		"non numeric": "1 2 three",
		"negative":    "1 -2",
		"fractional":  "1.5",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeeds(strings.NewReader(input))
			var invalid *errs.ErrInvalidArgument
			assert.True(t, errors.As(err, &invalid), "expected ErrInvalidArgument, got %v", err)
		})
	}
}

func TestSeedUniverse_Slice(t *testing.T) {
	universe := NewSeedUniverse([]uint64{9, 8, 7, 6, 5})
	assert.Equal(t, []uint64{6, 7}, universe.Slice(1, 3))
	assert.Equal(t, []uint64{8, 9}, universe.Slice(3, 100))
	assert.Equal(t, []uint64{5}, universe.Slice(-1, 1))
	assert.Nil(t, universe.Slice(4, 2))
	assert.Nil(t, universe.Slice(10, 20))

	// Slices are copies.
	s := universe.Slice(0, 1)
	s[0] = 100
	assert.Equal(t, []uint64{5}, universe.Slice(0, 1))
}

func TestLoadSeedsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "random_seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("3\n1\n2\n"), 0o644))

	universe, err := LoadSeedsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, universe.Slice(0, 3))
}
