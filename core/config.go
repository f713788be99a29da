package core

import (
	"io"

	"github.com/gologme/log"
)

type config struct {
	sessionCounter SessionID
	maxEvents      int
	logger         Logger
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.sessionCounter = 0
		c.maxEvents = 128
		c.logger = log.New(io.Discard, "", 0)
	}
}

// WithSessionCounter starts session allocation at the given value.
// Sessions below it can be handed out before the Reactor exists.
func WithSessionCounter(start SessionID) Option {
	return func(c *config) {
		c.sessionCounter = start
	}
}

// WithMaxEvents sets how many readiness notifications are collected per poll.
func WithMaxEvents(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEvents = n
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
