package model

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kcmc-lab/instancegen/internal/common/errs"
)

const (
	instancePrefix   = "INSTANCE"
	evaluationPrefix = "EVALUATION"
	lockPrefix       = "LOCK"
	progressPrefix   = "KCMC"
)

var configurationFields = []string{"pois", "sensors", "sinks", "area_side", "coverage_radius", "communication_radius"}

// Configuration is one independent parameter tuple of the instance space.
type Configuration struct {
	Pois                int
	Sensors             int
	Sinks               int
	AreaSide            int
	CoverageRadius      int
	CommunicationRadius int
}

func (c Configuration) tuple() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d", c.Pois, c.Sensors, c.Sinks, c.AreaSide, c.CoverageRadius, c.CommunicationRadius)
}

// InstanceKey is the hash holding seed -> serialized instance.
func (c Configuration) InstanceKey() string {
	return instancePrefix + ":" + c.tuple()
}

// EvaluationKey is the hash holding seed -> serialized evaluation.
func (c Configuration) EvaluationKey() string {
	return evaluationPrefix + ":" + c.tuple()
}

// LockKey is the key of the lock guarding the block starting at offset.
func (c Configuration) LockKey(offset int) string {
	return fmt.Sprintf("%s:BLOCK%d:%s", lockPrefix, offset, c.InstanceKey())
}

// LockKeyPattern matches the lock keys of every block of c.
func (c Configuration) LockKeyPattern() string {
	return lockPrefix + ":BLOCK*:" + c.InstanceKey()
}

// LockOffset extracts the block offset from one of c's lock keys.
func (c Configuration) LockOffset(key string) (int, bool) {
	prefix := lockPrefix + ":BLOCK"
	suffix := ":" + c.InstanceKey()
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) || len(key) < len(prefix)+len(suffix) {
		return 0, false
	}
	offset, err := strconv.Atoi(key[len(prefix) : len(key)-len(suffix)])
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

// String identifies the configuration on progress lines and in logs.
func (c Configuration) String() string {
	return progressPrefix + ":" + c.tuple()
}

// Args are the generator's positional configuration arguments, in protocol order.
func (c Configuration) Args() []string {
	return []string{
		strconv.Itoa(c.Pois),
		strconv.Itoa(c.Sensors),
		strconv.Itoa(c.Sinks),
		strconv.Itoa(c.AreaSide),
		strconv.Itoa(c.CoverageRadius),
		strconv.Itoa(c.CommunicationRadius),
	}
}

// LoadConfigurations parses a comma separated catalog. The first row is a header and is
// skipped; every other non-blank row must hold exactly six non-negative integers.
func LoadConfigurations(r io.Reader) ([]Configuration, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var configurations []Configuration
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading configuration catalog")
		}
		if row == 0 || isBlank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		c, err := parseConfiguration(line, record)
		if err != nil {
			return nil, err
		}
		configurations = append(configurations, c)
	}
	return configurations, nil
}

// LoadConfigurationsFile is LoadConfigurations over the file at path.
func LoadConfigurationsFile(path string) ([]Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening configuration catalog")
	}
	defer f.Close()
	configurations, err := LoadConfigurations(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %s", path)
	}
	return configurations, nil
}

func parseConfiguration(line int, record []string) (Configuration, error) {
	if len(record) != len(configurationFields) {
		return Configuration{}, &errs.ErrInvalidArgument{
			Name:    fmt.Sprintf("configs:%d", line),
			Value:   strings.Join(record, ","),
			Message: fmt.Sprintf("expected %d fields, got %d", len(configurationFields), len(record)),
		}
	}
	values := make([]int, len(record))
	for i, field := range record {
		field = strings.TrimSpace(field)
		v, err := strconv.Atoi(field)
		if err != nil || v < 0 {
			return Configuration{}, &errs.ErrInvalidArgument{
				Name:    fmt.Sprintf("configs:%d:%s", line, configurationFields[i]),
				Value:   field,
				Message: "must be a non-negative integer",
			}
		}
		values[i] = v
	}
	return Configuration{
		Pois:                values[0],
		Sensors:             values[1],
		Sinks:               values[2],
		AreaSide:            values[3],
		CoverageRadius:      values[4],
		CommunicationRadius: values[5],
	}, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
