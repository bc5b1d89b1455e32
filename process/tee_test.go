package process

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("broken pipe")
	}

	r.done = true

	return copy(p, r.data), nil
}

func TestTeeReadError(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	good, writer := io.Pipe()

	tee := newTee()
	tee.drain(&failingReader{data: []byte("partial")}, sink{capture: stdout})
	tee.drain(good, sink{capture: stderr})

	go func() {
		writer.Write([]byte("line 1\n"))
		writer.Write([]byte("line 2\n"))
		writer.Close()
	}()

	err := tee.wait()
	require.Error(t, err)

	require.Equal(t, "partial", stdout.String())
	require.Equal(t, "line 1\nline 2\n", stderr.String())
	require.Len(t, tee.Combined(), len("partial")+len("line 1\nline 2\n"))
}

func TestTeeOrder(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	buffer, live := &bytes.Buffer{}, &bytes.Buffer{}

	outReader, outWriter := io.Pipe()
	errReader, errWriter := io.Pipe()

	tee := newTee()
	tee.drain(outReader, sink{capture: stdout, buffer: buffer, echo: live})
	tee.drain(errReader, sink{capture: stderr})

	write := func(w io.Writer, data, combined string) {
		w.Write([]byte(data))

		require.Eventually(t, func() bool {
			return tee.Combined() == combined
		}, time.Second, time.Millisecond)
	}

	write(errWriter, "A\n", "A\n")
	write(outWriter, "B\n", "A\nB\n")
	write(errWriter, "C\n", "A\nB\nC\n")

	outWriter.Close()
	errWriter.Close()

	require.NoError(t, tee.wait())

	require.Equal(t, "A\nB\nC\n", tee.Combined())
	require.Equal(t, "B\n", stdout.String())
	require.Equal(t, "B\n", buffer.String())
	require.Equal(t, "B\n", live.String())
	require.Equal(t, "A\nC\n", stderr.String())
}

type failingWriter struct{}

func (w failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("terminal gone")
}

func TestTeeEchoError(t *testing.T) {
	capture := &bytes.Buffer{}

	tee := newTee()
	tee.drain(bytes.NewBufferString("hello\n"), sink{capture: capture, echo: failingWriter{}})

	err := tee.wait()
	require.EqualError(t, err, "terminal gone")

	require.Equal(t, "hello\n", capture.String())
	require.Equal(t, "hello\n", tee.Combined())
}
