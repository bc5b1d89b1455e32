//go:build linux

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// poll drains all streams from a single loop. A chunk is read as soon as
// its pipe becomes readable. Pipes that are readable in the same wakeup
// are read in the order of the streams.
func (t *tee) poll(streams ...stream) {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		fds := make([]unix.PollFd, len(streams))
		for i, s := range streams {
			fds[i] = unix.PollFd{Fd: int32(s.file.Fd()), Events: unix.POLLIN}
		}

		buf := make([]byte, 32*1024)
		open := len(fds)

		for open > 0 {
			if _, err := unix.Poll(fds, -1); err != nil {
				if errors.Is(err, unix.EINTR) {
					continue
				}

				t.fail(err)
				return
			}

			for i := range fds {
				// Negative descriptors are ignored by poll
				if fds[i].Fd < 0 || fds[i].Revents == 0 {
					continue
				}

				n, err := unix.Read(int(fds[i].Fd), buf)
				if n > 0 {
					t.write(streams[i].sink, buf[:n])
					continue
				}

				if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
					continue
				}

				if err != nil {
					t.fail(err)
				}

				fds[i].Fd = -1
				open--
			}
		}
	}()
}
