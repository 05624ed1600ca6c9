package history

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// DefaultMaxChainLength bounds history walks.
const DefaultMaxChainLength = 10_000

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxChainLength bounds how many records a history walk may visit.
func WithMaxChainLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChain = n
		}
	}
}

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
