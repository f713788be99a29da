package rendezvous

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// pollSlice bounds each poll so a cancelled context is noticed promptly.
const pollSlice = 50 * time.Millisecond

// waitReadable blocks until fd is readable, timeout has passed or ctx is done.
func waitReadable(ctx context.Context, fd int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TimeoutError{}
		}
		if remaining > pollSlice {
			remaining = pollSlice
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		switch {
		case err == unix.EINTR:
		case err != nil:
			return err
		case n > 0:
			return nil
		}
	}
}
