package generator

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

const maxStderrLineBytes = 4 * 1024

// stderrLogger logs each line the generator writes to stderr. It accepts any amount of output:
// lines longer than maxStderrLineBytes are logged truncated and the rest of the line is dropped.
// Write never fails, so the generator is never cut off for what it writes to stderr.
type stderrLogger struct {
	log       *logrus.Entry
	line      []byte
	truncated int
}

func newStderrLogger(log *logrus.Entry) *stderrLogger {
	return &stderrLogger{log: log.WithField("stream", "stderr")}
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		end := bytes.IndexByte(p, '\n')
		chunk := p
		if end >= 0 {
			chunk = p[:end]
		}
		w.append(chunk)
		if end < 0 {
			break
		}
		w.flush()
		p = p[end+1:]
	}
	return n, nil
}

// Close logs any final line that was not newline terminated.
func (w *stderrLogger) Close() error {
	if len(w.line) > 0 || w.truncated > 0 {
		w.flush()
	}
	return nil
}

func (w *stderrLogger) append(chunk []byte) {
	room := maxStderrLineBytes - len(w.line)
	if len(chunk) > room {
		w.truncated += len(chunk) - room
		chunk = chunk[:room]
	}
	w.line = append(w.line, chunk...)
}

func (w *stderrLogger) flush() {
	entry := w.log
	if w.truncated > 0 {
		entry = entry.WithField("truncatedBytes", w.truncated)
	}
	entry.Debug(string(bytes.TrimRight(w.line, "\r")))
	w.line = w.line[:0]
	w.truncated = 0
}
