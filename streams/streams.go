// Package streams provides IOStreams adapters for the expconf Loader: writers
// backed by stdout/stderr, in-memory buffers for capture in tests, io.Discard
// for silent operation, and a forwarder to log/slog.
package streams

import (
	"bytes"
	"io"
	"log/slog"
	"os"
)

// IOStreams is the minimal contract for user-facing streams used by the
// Loader. Any type with these three methods can be passed to
// expconf.WithStreams, including types defined outside this package.
type IOStreams interface {
	In() io.Reader
	Out() io.Writer
	ErrOut() io.Writer
}

// BasicIOStreams forwards to the supplied io.Reader/io.Writer targets. Use
// Default, Writers, Discard, or Slog to construct values.
type BasicIOStreams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (s BasicIOStreams) In() io.Reader     { return s.in }
func (s BasicIOStreams) Out() io.Writer    { return s.out }
func (s BasicIOStreams) ErrOut() io.Writer { return s.errOut }

// Default returns a BasicIOStreams backed by os.Stdin, os.Stdout and os.Stderr.
func Default() BasicIOStreams {
	return BasicIOStreams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// Writers returns a BasicIOStreams writing Out to `out` and ErrOut to `err`.
// In is set to os.Stdin.
func Writers(out, err io.Writer) BasicIOStreams {
	return BasicIOStreams{in: os.Stdin, out: out, errOut: err}
}

// Discard returns a BasicIOStreams that drops all output.
func Discard() BasicIOStreams {
	return Writers(io.Discard, io.Discard)
}

// BuffersStreams captures output into bytes.Buffers, for inspecting Loader
// messages after Load() completes. Not safe for concurrent writers.
type BuffersStreams struct {
	InR    io.Reader
	OutBuf *bytes.Buffer
	ErrBuf *bytes.Buffer
}

// Buffers creates a BuffersStreams with fresh Out and ErrOut buffers.
func Buffers() *BuffersStreams {
	return &BuffersStreams{
		InR:    os.Stdin,
		OutBuf: &bytes.Buffer{},
		ErrBuf: &bytes.Buffer{},
	}
}

func (b *BuffersStreams) In() io.Reader     { return b.InR }
func (b *BuffersStreams) Out() io.Writer    { return b.OutBuf }
func (b *BuffersStreams) ErrOut() io.Writer { return b.ErrBuf }

// Strings returns the current contents of the Out and ErrOut buffers.
func (b *BuffersStreams) Strings() (out, err string) {
	return b.OutBuf.String(), b.ErrBuf.String()
}

// Reset clears both buffers.
func (b *BuffersStreams) Reset() {
	b.OutBuf.Reset()
	b.ErrBuf.Reset()
}

// slogWriter adapts slog.Logger to io.Writer, one log record per Write.
type slogWriter struct {
	l     *slog.Logger
	level slog.Level
}

func (w slogWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	w.l.Log(nil, w.level, string(p))
	return n, nil
}

// Slog returns a BasicIOStreams that writes Loader messages to a slog.Logger:
// Out at the `info` level, ErrOut at the `err` level.
func Slog(l *slog.Logger, info, err slog.Level) BasicIOStreams {
	return BasicIOStreams{
		in:     os.Stdin,
		out:    slogWriter{l: l, level: info},
		errOut: slogWriter{l: l, level: err},
	}
}
