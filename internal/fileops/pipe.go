package fileops

import (
	"bytes"
	"io"
	"sync"

	"github.com/giantswarm/fdtable/internal/core"
	"golang.org/x/sys/unix"
)

// DefaultPipeCapacity is the number of buffered bytes after which writers
// block.
const DefaultPipeCapacity = 64 << 10

// pipeBuffer is the state shared by both ends of a pipe.
type pipeBuffer struct {
	mu       sync.Mutex
	cond     sync.Cond
	buf      bytes.Buffer
	capacity int

	readerClosed bool
	writerClosed bool

	// restarts is bumped by Restart; blocked callers that observe a change
	// return core.ErrRestart.
	restarts uint64
}

// PipeEnd is one end of a pipe. It implements core.FileOps.
type PipeEnd struct {
	b      *pipeBuffer
	reader bool
}

var _ core.FileOps = (*PipeEnd)(nil)

// NewPipe returns the read and write ends of a pipe buffering up to
// capacity bytes. A non-positive capacity selects DefaultPipeCapacity.
func NewPipe(capacity int) (r, w *PipeEnd) {
	if capacity <= 0 {
		capacity = DefaultPipeCapacity
	}
	b := &pipeBuffer{capacity: capacity}
	b.cond.L = &b.mu
	return &PipeEnd{b: b, reader: true}, &PipeEnd{b: b}
}

// Read blocks until data is available, the write end is closed (io.EOF) or
// the file is restarted (core.ErrRestart). Non-blocking files fail with
// EAGAIN instead of blocking.
func (e *PipeEnd) Read(f *core.File, _ *int64, p []byte) (int, error) {
	if !e.reader {
		return 0, core.ErrBadDescriptor.With("read from pipe write end")
	}
	b := e.b
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.restarts
	for b.buf.Len() == 0 {
		if b.writerClosed {
			return 0, io.EOF
		}
		if f.Flags()&core.FlagNonBlock != 0 {
			return 0, unix.EAGAIN
		}
		if b.restarts != gen {
			return 0, core.ErrRestart
		}
		b.cond.Wait()
	}
	n, _ := b.buf.Read(p)
	b.cond.Broadcast()
	return n, nil
}

// Write blocks while the pipe is full. A restart or a closed read end stops
// it early with the number of bytes already written.
func (e *PipeEnd) Write(f *core.File, _ *int64, p []byte) (int, error) {
	if e.reader {
		return 0, core.ErrBadDescriptor.With("write to pipe read end")
	}
	b := e.b
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.restarts
	written := 0
	for written < len(p) {
		if b.readerClosed {
			return written, unix.EPIPE
		}
		room := b.capacity - b.buf.Len()
		if room == 0 {
			if f.Flags()&core.FlagNonBlock != 0 {
				if written == 0 {
					return 0, unix.EAGAIN
				}
				return written, nil
			}
			if b.restarts != gen {
				return written, core.ErrRestart
			}
			b.cond.Wait()
			continue
		}
		chunk := min(room, len(p)-written)
		b.buf.Write(p[written : written+chunk])
		written += chunk
		b.cond.Broadcast()
	}
	return written, nil
}

// Ioctl supports core.IoctlNRead.
func (e *PipeEnd) Ioctl(_ *core.File, cmd uint, arg any) error {
	if cmd != core.IoctlNRead {
		return core.ErrNotSupported.With("pipe ioctl %#x", cmd)
	}
	n, ok := arg.(*int)
	if !ok {
		return core.ErrInvalidArgument.With("IoctlNRead wants *int, got %T", arg)
	}
	e.b.mu.Lock()
	*n = e.b.buf.Len()
	e.b.mu.Unlock()
	return nil
}

// Poll reports readability for the read end and writability for the write
// end, plus hang-up once the other end is gone.
func (e *PipeEnd) Poll(_ *core.File, events core.PollEvents) core.PollEvents {
	b := e.b
	b.mu.Lock()
	defer b.mu.Unlock()

	var ready core.PollEvents
	if e.reader {
		if b.buf.Len() > 0 {
			ready |= core.PollIn
		}
		if b.writerClosed {
			ready |= core.PollHup
		}
	} else {
		if b.readerClosed {
			ready |= core.PollErr
		} else if b.buf.Len() < b.capacity {
			ready |= core.PollOut
		}
	}
	return ready & (events | core.PollErr | core.PollHup)
}

// Stat reports the buffered byte count as the size.
func (e *PipeEnd) Stat(*core.File) (core.Stat, error) {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return core.Stat{Size: int64(e.b.buf.Len()), Mode: unix.S_IFIFO | 0o600}, nil
}

// Restart wakes every blocked reader and writer of the pipe with
// core.ErrRestart. It only affects calls already blocked: a goroutine that
// holds the descriptor but enters Read or Write after Restart blocks as
// usual, and a close waiting on that descriptor waits until the call
// returns.
func (e *PipeEnd) Restart(*core.File) {
	e.b.mu.Lock()
	e.b.restarts++
	e.b.cond.Broadcast()
	e.b.mu.Unlock()
}

// Close shuts this end of the pipe.
func (e *PipeEnd) Close(*core.File) error {
	b := e.b
	b.mu.Lock()
	if e.reader {
		b.readerClosed = true
		b.buf.Reset()
	} else {
		b.writerClosed = true
	}
	b.cond.Broadcast()
	b.mu.Unlock()
	return nil
}
