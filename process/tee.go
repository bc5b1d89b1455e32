package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// sink is where the bytes of one stream go.
type sink struct {
	capture io.Writer     // capture file
	buffer  *bytes.Buffer // in-memory copy, may be nil
	echo    io.Writer     // live output, may be nil
}

// stream is the read end of an output pipe together with its sink.
type stream struct {
	file *os.File
	sink sink
}

// tee drains the output streams of a process. Every chunk goes to the
// sink of its stream and to the combined buffer, in the order the chunks
// have been read.
type tee struct {
	wg sync.WaitGroup

	lock     sync.Mutex
	combined bytes.Buffer
	err      error
}

func newTee() *tee {
	return &tee{}
}

// drain reads from r until EOF or a read error. Each call reads in its own
// goroutine, so chunks of different readers are only ordered if they
// arrive far enough apart. Use poll for the pipes of a process.
func (t *tee) drain(r io.Reader, s sink) {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		buf := make([]byte, 32*1024)

		for {
			n, err := r.Read(buf)
			if n > 0 {
				t.write(s, buf[:n])
			}

			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
					t.fail(err)
				}

				return
			}
		}
	}()
}

func (t *tee) write(s sink, p []byte) {
	if _, err := s.capture.Write(p); err != nil {
		t.fail(err)
	}

	if s.buffer != nil {
		if _, err := s.buffer.Write(p); err != nil {
			t.fail(err)
		}
	}

	if s.echo != nil {
		if _, err := s.echo.Write(p); err != nil {
			t.fail(err)
		}
	}

	t.lock.Lock()
	t.combined.Write(p)
	t.lock.Unlock()
}

func (t *tee) fail(err error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.err == nil {
		t.err = err
	}
}

// wait blocks until all streams are drained and returns the first error
// that occurred while reading or writing.
func (t *tee) wait() error {
	t.wg.Wait()

	t.lock.Lock()
	defer t.lock.Unlock()

	return t.err
}

// Combined returns everything that has been read so far.
func (t *tee) Combined() string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.combined.String()
}
