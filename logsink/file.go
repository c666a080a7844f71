package logsink

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"
)

var log = logging.Logger("logsink")

// DefaultTailInterval is the polling period of FileSink.Tail.
const DefaultTailInterval = 250 * time.Millisecond

// FileSink redirects every launch of a miner into a log file. Each launch
// starts from an empty file.
type FileSink struct {
	path string

	mu sync.Mutex
	// generation is bumped on every launch so the tailer switches files.
	generation uint64
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Path() string {
	return s.path
}

// Attach replaces the log file with an empty one and returns it for the next
// launch. The previous file is unlinked rather than truncated, so a tailer
// still holding it can read it to the end.
func (s *FileSink) Attach() (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, xerrors.Errorf("removing log file %s: %w", s.path, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, xerrors.Errorf("opening log file %s: %w", s.path, err)
	}
	s.generation++
	return f, nil
}

func (s *FileSink) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// open returns the log file of the current launch along with its generation.
func (s *FileSink) open() (*os.File, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	return f, s.generation, err
}

// Tail copies what is appended to the log file into dst until ctx is done.
// It follows the file replacements made by Attach. A Tagged dst is flushed on
// return.
func (s *FileSink) Tail(ctx context.Context, clk clock.Clock, dst io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTailInterval
	}
	t := &tailer{sink: s, dst: dst}
	defer t.close()

	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		if err := t.poll(); err != nil {
			log.Warnw("tailing log file failed", "path", s.path, "err", err)
		}
		select {
		case <-ctx.Done():
			if err := t.poll(); err != nil {
				log.Warnw("tailing log file failed", "path", s.path, "err", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

type tailer struct {
	sink       *FileSink
	dst        io.Writer
	f          *os.File
	offset     int64
	generation uint64
	buf        [32 << 10]byte
}

func (t *tailer) poll() error {
	if t.f != nil && t.sink.current() != t.generation {
		// the previous launch may have written since the last poll
		err := t.drain()
		t.rewind()
		_ = t.f.Close()
		t.f = nil
		if err != nil {
			return err
		}
	}

	if t.f == nil {
		f, g, err := t.sink.open()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		t.f = f
		t.offset = 0
		t.generation = g
	}

	st, err := t.f.Stat()
	if err != nil {
		return err
	}
	if st.Size() < t.offset {
		t.rewind()
	}
	return t.drain()
}

func (t *tailer) drain() error {
	for {
		n, err := t.f.ReadAt(t.buf[:], t.offset)
		if n > 0 {
			if _, werr := t.dst.Write(t.buf[:n]); werr != nil {
				return werr
			}
			t.offset += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (t *tailer) rewind() {
	t.offset = 0
	if fl, ok := t.dst.(interface{ Flush() error }); ok {
		_ = fl.Flush()
	}
}

func (t *tailer) close() {
	if fl, ok := t.dst.(interface{ Flush() error }); ok {
		_ = fl.Flush()
	}
	if t.f != nil {
		_ = t.f.Close()
	}
}
