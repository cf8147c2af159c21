package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/kcmc-lab/instancegen/internal/common/errs"
)

// SeedUniverse is the deduplicated, ascending pool of seeds shared by every configuration.
// Block boundaries are positions in this ordering, so every worker sharing a store must
// build it from the same source.
type SeedUniverse struct {
	seeds []uint64
}

// NewSeedUniverse deduplicates and sorts seeds.
func NewSeedUniverse(seeds []uint64) SeedUniverse {
	sorted := slices.Clone(seeds)
	slices.Sort(sorted)
	return SeedUniverse{seeds: slices.Compact(sorted)}
}

func (u SeedUniverse) Len() int {
	return len(u.seeds)
}

// Slice returns a copy of the seeds at positions [from, to), clamped to the universe.
func (u SeedUniverse) Slice(from, to int) []uint64 {
	if from < 0 {
		from = 0
	}
	if to > len(u.seeds) {
		to = len(u.seeds)
	}
	if from >= to {
		return nil
	}
	return slices.Clone(u.seeds[from:to])
}

// LoadSeeds parses whitespace separated non-negative integers.
func LoadSeeds(r io.Reader) (SeedUniverse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	var seeds []uint64
	for position := 0; scanner.Scan(); position++ {
		token := scanner.Text()
		seed, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return SeedUniverse{}, &errs.ErrInvalidArgument{
				Name:    fmt.Sprintf("seeds:%d", position),
				Value:   token,
				Message: "must be a non-negative integer",
			}
		}
		seeds = append(seeds, seed)
	}
	if err := scanner.Err(); err != nil {
		return SeedUniverse{}, errors.Wrap(err, "reading seeds")
	}
	if len(seeds) == 0 {
		return SeedUniverse{}, &errs.ErrInvalidArgument{Name: "seeds", Value: "", Message: "no seeds found"}
	}
	return NewSeedUniverse(seeds), nil
}

// LoadSeedsFile is LoadSeeds over the file at path.
func LoadSeedsFile(path string) (SeedUniverse, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedUniverse{}, errors.Wrap(err, "opening seed file")
	}
	defer f.Close()
	universe, err := LoadSeeds(f)
	if err != nil {
		return SeedUniverse{}, errors.WithMessagef(err, "loading %s", path)
	}
	return universe, nil
}
