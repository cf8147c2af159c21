package generator

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kcmc-lab/instancegen/internal/common/logctx"
	"github.com/kcmc-lab/instancegen/internal/instancegen/model"
)

const (
	DefaultMaxLineBytes = 512 * 1024
	DefaultExitTimeout  = time.Minute
	initialBufferBytes  = 64 * 1024
)

// Request is one batch of seeds to generate for a configuration.
type Request struct {
	Configuration model.Configuration
	KRange        int
	MRange        int
	Seeds         []uint64
}

// Args are the generator's positional arguments:
// k-range, m-range, the six configuration values, then every seed in order.
func (r Request) Args() []string {
	args := make([]string, 0, 8+len(r.Seeds))
	args = append(args, strconv.Itoa(r.KRange), strconv.Itoa(r.MRange))
	args = append(args, r.Configuration.Args()...)
	for _, seed := range r.Seeds {
		args = append(args, strconv.FormatUint(seed, 10))
	}
	return args
}

// Pair is the generator's output for one seed.
type Pair struct {
	Seed       uint64
	Instance   string
	Evaluation string
}

type Driver struct {
	// Executable followed by any arguments that precede the protocol arguments.
	command      []string
	maxLineBytes int
	exitTimeout  time.Duration
}

func NewDriver(command []string, maxLineBytes int, exitTimeout time.Duration) *Driver {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	if exitTimeout <= 0 {
		exitTimeout = DefaultExitTimeout
	}
	return &Driver{
		command:      command,
		maxLineBytes: maxLineBytes,
		exitTimeout:  exitTimeout,
	}
}

// Generate runs the generator for req and passes each seed's pair to handle as soon as both of
// its lines have been read. It returns the number of pairs handled. Failures of the generator
// to follow its output protocol are returned as *ProtocolViolation; an error from handle is
// returned as is. In every case the child has exited by the time Generate returns.
func (d *Driver) Generate(ctx *logctx.Context, req Request, handle func(Pair) error) (int, error) {
	if len(req.Seeds) == 0 {
		return 0, nil
	}
	if len(d.command) == 0 {
		return 0, errors.New("no generator command configured")
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(childCtx, d.command[0], append(d.command[1:], req.Args()...)...)
	stderrLog := newStderrLogger(ctx.Log)
	defer stderrLog.Close()
	cmd.Stderr = stderrLog
	cmd.WaitDelay = d.exitTimeout
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if err := cmd.Start(); err != nil {
		return 0, errors.Wrapf(err, "starting generator %s", d.command[0])
	}
	ctx.Log.Debugf("Started generator pid %d for %d seeds", cmd.Process.Pid, len(req.Seeds))

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, min(initialBufferBytes, d.maxLineBytes)), d.maxLineBytes)
	pairs, line, readErr := d.readPairs(scanner, req, handle)
	if readErr != nil {
		violation, isViolation := readErr.(*ProtocolViolation)
		exited := isViolation && violation.Reason == ShortOutput
		if !exited {
			cancel()
		}
		_, exitErr := d.reap(cmd, stdout, scanner, cancel)
		if ctx.Err() != nil {
			return pairs, ctx.Err()
		}
		if exited && exitErr != nil {
			violation.Err = errors.WithMessage(exitErr, "stdout ended early")
		}
		return pairs, readErr
	}

	extraLine, err := d.reap(cmd, stdout, scanner, cancel)
	if err != nil {
		if ctx.Err() != nil {
			return pairs, ctx.Err()
		}
		return pairs, d.violation(req, NonZeroExit, pairs, 0, err)
	}
	if extraLine > 0 {
		return pairs, d.violation(req, TrailingOutput, pairs, line+extraLine, nil)
	}
	return pairs, nil
}

// readPairs reads two lines per seed and returns the pairs handled and the stdout lines read.
func (d *Driver) readPairs(scanner *bufio.Scanner, req Request, handle func(Pair) error) (int, int, error) {
	line := 0

	next := func(pairs int) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				if errors.Is(err, bufio.ErrTooLong) {
					return "", d.violation(req, LineTooLong, pairs, line+1, err)
				}
				return "", d.violation(req, ShortOutput, pairs, line+1, err)
			}
			return "", d.violation(req, ShortOutput, pairs, line+1, io.ErrUnexpectedEOF)
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if !wellFormed(text) {
			return "", d.violation(req, MalformedLine, pairs, line, nil)
		}
		return text, nil
	}

	for i, seed := range req.Seeds {
		instance, err := next(i)
		if err != nil {
			return i, line, err
		}
		evaluation, err := next(i)
		if err != nil {
			return i, line, err
		}
		if err := handle(Pair{Seed: seed, Instance: instance, Evaluation: evaluation}); err != nil {
			return i, line, err
		}
	}

	return len(req.Seeds), line, nil
}

// reap reads whatever is left on stdout and waits for the child to exit, killing it if both have
// not happened within the exit timeout. It returns the position, counted from the last line
// consumed, of the first non-blank line found after the expected output, or 0 if there was none.
func (d *Driver) reap(cmd *exec.Cmd, stdout io.ReadCloser, scanner *bufio.Scanner, kill context.CancelFunc) (int, error) {
	type exit struct {
		extraLine int
		err       error
	}
	done := make(chan exit, 1)
	go func() {
		extraLine := drain(scanner, stdout)
		done <- exit{extraLine: extraLine, err: cmd.Wait()}
	}()
	timer := time.NewTimer(d.exitTimeout)
	defer timer.Stop()
	select {
	case result := <-done:
		return result.extraLine, result.err
	case <-timer.C:
		kill()
		_ = stdout.Close()
		result := <-done
		return result.extraLine, errors.Wrapf(result.err, "generator did not exit within %s", d.exitTimeout)
	}
}

// drain consumes stdout to its end so the child can never block on a full pipe.
func drain(scanner *bufio.Scanner, stdout io.Reader) int {
	extraLine := 0
	n := 0
	for scanner.Scan() {
		n++
		if extraLine == 0 && strings.TrimSpace(scanner.Text()) != "" {
			extraLine = n
		}
	}
	if scanner.Err() != nil {
		// The scanner gives up on an over-long line; the bytes after it still need reading.
		if extraLine == 0 {
			extraLine = n + 1
		}
		_, _ = io.Copy(io.Discard, stdout)
	}
	return extraLine
}

func (d *Driver) violation(req Request, reason ViolationReason, pairs int, line int, err error) *ProtocolViolation {
	return &ProtocolViolation{
		Reason:        reason,
		Configuration: req.Configuration,
		Seeds:         req.Seeds,
		PairsRead:     pairs,
		Line:          line,
		Err:           err,
	}
}

func wellFormed(line string) bool {
	if line == "" {
		return false
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if (c < 0x20 && c != '\t') || c > 0x7e {
			return false
		}
	}
	return true
}
