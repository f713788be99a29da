package event

import (
	"sync"

	"github.com/eapache/queue"
)

// Sink accepts events from the engine. Send must not block.
type Sink interface {
	Send(ev Event) bool
}

// Channel is an unbounded, ordered event stream.
// Send never blocks; events are handed to the reader of Recv in the order they were sent.
// A goroutine hands them over, and it only exits once Recv has been drained or Discard is called.
type Channel struct {
	mutex    sync.Mutex
	queue    *queue.Queue
	inFlight Event
	notify   chan struct{}
	out      chan Event
	quit     chan struct{}
	done     chan struct{}
	discard  sync.Once
	closed   bool
}

func NewChannel() *Channel {
	c := &Channel{
		queue:  queue.New(),
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.pump()
	return c
}

// Send queues ev. It returns false, dropping ev, if the channel has been closed.
func (c *Channel) Send(ev Event) bool {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return false
	}
	c.queue.Add(ev)
	c.mutex.Unlock()
	c.signal()
	return true
}

// Recv returns the stream of events. It is closed once Close has been called and every queued event
// has been received.
func (c *Channel) Recv() <-chan Event {
	return c.out
}

// Len returns the number of events queued but not yet handed to a reader.
func (c *Channel) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queue.Length()
}

// Close stops accepting events. Events already queued are still delivered, so a reader should keep
// receiving until Recv is closed, or call Discard.
func (c *Channel) Close() {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()
	c.signal()
}

// Discard closes the channel for a reader that stops receiving. Recv is closed without delivering what
// is still queued; those events are returned instead, so the resources they carry can be released.
// Only the first call returns anything.
func (c *Channel) Discard() []Event {
	var evs []Event
	c.discard.Do(func() {
		c.mutex.Lock()
		c.closed = true
		c.mutex.Unlock()
		close(c.quit)
		<-c.done
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if c.inFlight != nil {
			evs = append(evs, c.inFlight)
			c.inFlight = nil
		}
		for c.queue.Length() > 0 {
			evs = append(evs, c.queue.Remove().(Event))
		}
	})
	return evs
}

func (c *Channel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Channel) pump() {
	defer close(c.done)
	defer close(c.out)
	for {
		c.mutex.Lock()
		for c.queue.Length() == 0 {
			if c.closed {
				c.mutex.Unlock()
				return
			}
			c.mutex.Unlock()
			select {
			case <-c.notify:
			case <-c.quit:
				return
			}
			c.mutex.Lock()
		}
		ev := c.queue.Remove().(Event)
		c.inFlight = ev
		c.mutex.Unlock()
		select {
		case c.out <- ev:
			c.mutex.Lock()
			c.inFlight = nil
			c.mutex.Unlock()
		case <-c.quit:
			return
		}
	}
}
