// Package keyboard reads single key presses from a terminal.
package keyboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/focuscam/focuscam/internal/logging"
	"golang.org/x/term"
)

var logger = logging.NewLogger("focuscam/keyboard")

var ErrNotTerminal = errors.New("stdin is not a terminal")

// Reader delivers key bytes from an input.
type Reader struct {
	in      io.Reader
	restore func() error
}

// Open puts the terminal behind f into raw mode so keys arrive without
// Enter. Raw mode also stops the terminal from turning \n into \r\n, so
// log output is translated until Close restores the terminal.
func Open(f *os.File) (*Reader, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	logging.SetOutput(crlfWriter{os.Stderr})
	return &Reader{
		in: f,
		restore: func() error {
			logging.SetOutput(os.Stderr)
			return term.Restore(fd, state)
		},
	}, nil
}

type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewReader reads keys from r as is, for pipes and tests.
func NewReader(r io.Reader) *Reader {
	return &Reader{in: r}
}

// Keys sends every byte read to the returned channel until ctx is done or
// the input ends; the channel is closed then. A read blocked on the input
// only returns once the next key arrives.
func (r *Reader) Keys(ctx context.Context) <-chan byte {
	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 16)
		for {
			n, err := r.in.Read(buf)
			for _, b := range buf[:n] {
				select {
				case keys <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logger.Warnf("keyboard read: %v", err)
				}
				return
			}
		}
	}()
	return keys
}

// Close restores the terminal mode, if it was changed.
func (r *Reader) Close() error {
	if r.restore == nil {
		return nil
	}
	restore := r.restore
	r.restore = nil
	return restore()
}
