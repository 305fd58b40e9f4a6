// Package selector chooses the outbound path for each API call: the configured
// primary proxy when its liveness probe passes, otherwise a public proxy,
// otherwise a direct connection.
package selector

import (
	"context"

	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/metrics"
	"github.com/aredoff/farmbot/internal/pool"
	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/rs/zerolog"
)

// Prober checks reachability through an endpoint.
type Prober interface {
	Probe(ctx context.Context, ep *proxy.Endpoint) bool
}

type Selector struct {
	primary *proxy.Endpoint
	stats   *proxy.Stats
	public  *pool.Pool
	prober  Prober
	rand    clock.Rand
	logger  zerolog.Logger
	metrics *metrics.Collectors
}

// New creates a selector. primary and public may be nil.
func New(primary *proxy.Endpoint, public *pool.Pool, prober Prober, r clock.Rand, logger zerolog.Logger, m *metrics.Collectors) *Selector {
	return &Selector{
		primary: primary,
		stats:   &proxy.Stats{},
		public:  public,
		prober:  prober,
		rand:    r,
		logger:  logger,
		metrics: m,
	}
}

// Select probes the primary proxy once and falls back on failure. A nil result
// means a direct connection.
func (s *Selector) Select(ctx context.Context) *proxy.Endpoint {
	if s.primary != nil {
		ok := s.prober.Probe(ctx, s.primary)
		s.stats.Record(ok)
		if ok {
			s.logger.Info().Str("proxy", s.primary.String()).Msg("Using primary proxy.")
			s.metrics.ObserveSelection("primary")
			return s.primary
		}
		s.logger.Warn().
			Float64("primary_success_rate", s.stats.SuccessRate()).
			Msg("Primary proxy unavailable, switching to public proxy.")
	}

	if ep := s.public.Random(s.rand); ep != nil {
		s.logger.Info().Str("proxy", ep.String()).Msg("Using public proxy.")
		s.metrics.ObserveSelection("public")
		return ep
	}

	s.logger.Warn().Msg("No proxy available, using direct connection.")
	s.metrics.ObserveSelection("direct")
	return nil
}

// PrimaryStats returns the probe history of the primary proxy.
func (s *Selector) PrimaryStats() proxy.Stats {
	return *s.stats
}
