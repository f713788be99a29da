//go:build linux

package core

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const (
	epollUser int32 = iota
	epollWake
)

// epoll is a level-triggered Poller. The Handle travels in the epoll user data, the wakeup eventfd is tagged apart from it.
type epoll struct {
	epfd   int
	wakefd int
	buf    []unix.EpollEvent
	woken  atomic.Bool
}

func newPoller(maxEvents int) (*epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Pad: epollWake}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epoll{
		epfd:   epfd,
		wakefd: wakefd,
		buf:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

func (p *epoll) Register(fd int, h Handle, interest Events) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(interest), Fd: int32(h), Pad: epollUser}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (p *epoll) Reregister(fd int, h Handle, interest Events) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(interest), Fd: int32(h), Pad: epollUser}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (p *epoll) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// wait blocks until at least one resource is ready or the poller is woken.
// The wakeup itself is consumed here and never reported.
func (p *epoll) wait(out []readiness) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.buf, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	count := 0
	for _, ev := range p.buf[:n] {
		if ev.Pad == epollWake {
			var drain [8]byte
			_, _ = unix.Read(p.wakefd, drain[:])
			p.woken.Store(false)
			continue
		}
		out[count] = readiness{handle: Handle(uint32(ev.Fd)), events: epollToEvents(ev.Events)}
		count++
	}
	return count, nil
}

func (p *epoll) wake() error {
	if !p.woken.CompareAndSwap(false, true) {
		return nil
	}
	one := [8]byte{1}
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (p *epoll) close() error {
	werr := unix.Close(p.wakefd)
	if err := unix.Close(p.epfd); err != nil {
		return err
	}
	return werr
}

func eventsToEpoll(interest Events) uint32 {
	var ev uint32
	if interest&EventRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToEvents(ev uint32) Events {
	var events Events
	if ev&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if ev&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
