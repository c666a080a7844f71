// Package logsink routes miner output to the console, one tagged line at a time.
package logsink

import (
	"bytes"
	"io"
	"sync"

	"github.com/fatih/color"
)

// maxLine is the longest partial line kept before it is written anyway.
const maxLine = 64 << 10

var tagColors = []color.Attribute{
	color.FgCyan,
	color.FgMagenta,
	color.FgYellow,
	color.FgGreen,
	color.FgBlue,
}

// Console serializes lines coming from several sources onto one writer.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	tags int
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) writeLine(prefix string, line []byte) error {
	buf := make([]byte, 0, len(prefix)+len(line)+2)
	buf = append(buf, prefix...)
	buf = append(buf, ' ')
	buf = append(buf, line...)
	buf = append(buf, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(buf)
	return err
}

// Tagged returns a writer prefixing each line with "[tag]". Every source gets
// its own color.
func (c *Console) Tagged(tag string) *Tagged {
	c.mu.Lock()
	attr := tagColors[c.tags%len(tagColors)]
	c.tags++
	c.mu.Unlock()

	return &Tagged{
		console: c,
		prefix:  color.New(attr, color.Bold).Sprintf("[%s]", tag),
	}
}

// Tagged is an io.Writer splitting its input into lines. Complete lines are
// written immediately; a trailing partial line waits for Flush.
type Tagged struct {
	console *Console
	prefix  string

	mu  sync.Mutex
	buf []byte
}

// Write reports the bytes of p which were written or kept as a partial line.
// On error the unwritten rest of p is dropped from the buffer, so the caller
// may retry it.
func (t *Tagged) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := len(t.buf)
	data := append(t.buf, p...)
	off := 0
	for {
		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(data[off:off+i], []byte{'\r'})
		if err := t.console.writeLine(t.prefix, line); err != nil {
			if off < pending {
				t.buf = data[off:pending]
				return 0, err
			}
			t.buf = nil
			return off - pending, err
		}
		off += i + 1
	}
	t.buf = data[off:]
	if len(t.buf) >= maxLine {
		if err := t.flushLocked(); err != nil {
			return len(p), err
		}
	}
	if len(t.buf) == 0 {
		t.buf = nil
	}
	return len(p), nil
}

// Flush writes the pending partial line, if any.
func (t *Tagged) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked()
}

func (t *Tagged) flushLocked() error {
	if len(t.buf) == 0 {
		return nil
	}
	err := t.console.writeLine(t.prefix, t.buf)
	t.buf = nil
	return err
}

// Attach hands the writer to a new launch. Closing the returned writer
// flushes the last partial line.
func (t *Tagged) Attach() (io.WriteCloser, error) {
	return flushCloser{t}, nil
}

type flushCloser struct {
	*Tagged
}

func (f flushCloser) Close() error {
	return f.Flush()
}
