package embed

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	Provider      string
	RatePerSecond float64 // 0 disables rate limiting
	MaxRetries    int
	StatsWindow   time.Duration
	Backoff       func(attempt int) time.Duration
}

// Service is the embedding capability shared by every worker and query.
// It is safe for concurrent use.
type Service struct {
	backend  Embedder
	provider string
	limiter  *rate.Limiter
	retries  int
	backoff  func(int) time.Duration
	stats    *Stats
	log      *slog.Logger
}

// NewService wraps backend. A nil backend makes every Embed call return nil.
func NewService(backend Embedder, opts ServiceOptions, log *slog.Logger) *Service {
	s := &Service{
		backend:  backend,
		provider: opts.Provider,
		retries:  opts.MaxRetries,
		backoff:  opts.Backoff,
		stats:    NewStats(opts.StatsWindow),
		log:      log,
	}
	if s.provider == "" {
		s.provider = ProviderNone
	}
	if s.retries <= 0 {
		s.retries = MaxRetries
	}
	if s.backoff == nil {
		s.backoff = Backoff
	}
	if opts.RatePerSecond > 0 {
		burst := max(1, int(math.Ceil(opts.RatePerSecond)))
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return s
}

// Available reports whether a backend is configured.
func (s *Service) Available() bool {
	return s.backend != nil
}

// Provider returns the configured provider name.
func (s *Service) Provider() string {
	return s.provider
}

// Stats returns the latency snapshot of recent backend calls.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Embed returns the vector for text, or nil when text is blank, no backend is
// configured, or the backend keeps failing. Failures are logged, not returned.
func (s *Service) Embed(ctx context.Context, text string) []float32 {
	if s.backend == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	for attempt := 0; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				s.log.Warn("embedding rate limit wait aborted", "error", err)
				return nil
			}
		}

		start := time.Now()
		vec, err := s.backend.Embed(ctx, text)
		if err == nil && len(vec) == 0 {
			err = errEmptyVector
		}
		s.stats.Record(time.Since(start), err)
		if err == nil {
			return vec
		}

		if !IsRetryable(err) || attempt+1 >= s.retries {
			s.log.Warn("embedding failed", "provider", s.provider, "attempt", attempt+1, "error", err)
			return nil
		}

		wait := s.backoff(attempt)
		s.log.Info("retrying embedding", "provider", s.provider, "attempt", attempt+1, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			s.log.Warn("embedding cancelled", "error", ctx.Err())
			return nil
		case <-time.After(wait):
		}
	}
}

// Close releases backend resources.
func (s *Service) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
