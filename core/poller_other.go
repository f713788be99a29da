//go:build !linux

package core

type epoll struct{}

func newPoller(maxEvents int) (*epoll, error) {
	return nil, UnsupportedError{}
}

func (p *epoll) Register(fd int, h Handle, interest Events) error   { return UnsupportedError{} }
func (p *epoll) Reregister(fd int, h Handle, interest Events) error { return UnsupportedError{} }
func (p *epoll) Deregister(fd int) error                            { return UnsupportedError{} }
func (p *epoll) wait(out []readiness) (int, error)                  { return 0, UnsupportedError{} }
func (p *epoll) wake() error                                        { return UnsupportedError{} }
func (p *epoll) close() error                                       { return nil }
