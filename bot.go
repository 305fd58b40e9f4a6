package farmbot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aredoff/farmbot/internal/api"
	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/farm"
	"github.com/aredoff/farmbot/internal/logger"
	"github.com/aredoff/farmbot/internal/metrics"
	"github.com/aredoff/farmbot/internal/notify"
	"github.com/aredoff/farmbot/internal/parser"
	"github.com/aredoff/farmbot/internal/pool"
	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/aredoff/farmbot/internal/secret"
	"github.com/aredoff/farmbot/internal/selector"
	"github.com/aredoff/farmbot/internal/validator"
)

// Bot is the assembled agent: proxy selection, API executor, notifier and farm loop.
type Bot struct {
	config     *Config
	pool       *pool.Pool
	selector   *selector.Selector
	executor   *api.Executor
	controller *farm.Controller
	metrics    *metrics.Collectors

	sleeper  clock.Sleeper
	rand     clock.Rand
	notifier notify.Notifier

	metricsServer *http.Server
	metricsAddr   net.Addr
}

type Option func(*Bot)

// WithSleeper replaces the real clock for every wait the bot performs.
func WithSleeper(s clock.Sleeper) Option {
	return func(b *Bot) { b.sleeper = s }
}

// WithRand replaces the seeded random source.
func WithRand(r clock.Rand) Option {
	return func(b *Bot) { b.rand = r }
}

// WithNotifier replaces the notifier derived from the Telegram settings.
func WithNotifier(n notify.Notifier) Option {
	return func(b *Bot) { b.notifier = n }
}

// New validates config and wires the agent. The public proxy directory is
// fetched once here.
func New(ctx context.Context, config *Config, opts ...Option) (*Bot, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Bot{
		config:  config,
		sleeper: clock.Real{},
		metrics: metrics.New(config.Metrics.Namespace),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rand == nil {
		b.rand = clock.NewRand(config.Seed)
	}

	log := config.Logger

	algo, _ := secret.ParseAlgorithm(config.Secret.Cipher)
	token := secret.Provision(secret.Config{
		Encrypted: config.Secret.Token,
		Key:       config.Secret.Key,
		Algorithm: algo,
		Logger:    logger.WithComponent(log, "secret"),
	})

	var primary *proxy.Endpoint
	if config.Proxy.Primary != "" {
		ep, err := proxy.Parse(config.Proxy.Primary, config.Proxy.PrimaryHTTPS, proxy.Primary)
		if err != nil {
			return nil, fmt.Errorf("primary proxy: %w", err)
		}
		primary = ep
	} else {
		log.Warn().Msg("No primary proxy configured")
	}

	b.pool = pool.NewPool()
	b.loadPublicProxies(ctx)

	probe := validator.NewValidatorWithOptions(config.Proxy.ProbeTimeout, config.Proxy.ProbeURL)
	b.selector = selector.New(primary, b.pool, probe, b.rand, logger.WithComponent(log, "selector"), b.metrics)

	b.executor = api.NewExecutor(
		config.apiConfig(token, logger.WithComponent(log, "api")),
		b.selector, b.sleeper, b.rand, b.metrics,
	)

	if b.notifier == nil {
		b.notifier = b.newNotifier()
	}

	b.controller = farm.NewController(farm.Config{
		MinDelay:      config.Farm.MinDelay,
		MaxDelay:      config.Farm.MaxDelay,
		UnknownStatus: farm.UnknownStatus(config.Farm.UnknownStatus),
		Logger:        logger.WithComponent(log, "farm"),
	}, b.executor, b.notifier, b.sleeper, b.rand, b.metrics)

	if config.Metrics.Listen != "" {
		if err := b.serveMetrics(config.Metrics.Listen); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *Bot) loadPublicProxies(ctx context.Context) {
	log := logger.WithComponent(b.config.Logger, "directory")
	if len(b.config.Proxy.DirectoryURLs) == 0 {
		log.Info().Msg("No proxy directory configured, public fallback disabled")
		return
	}

	client := &http.Client{Timeout: b.config.Proxy.DirectoryTimeout}
	dir := parser.NewDirectory(b.config.Proxy.DirectoryURLs, client, log)

	proxies, errs := dir.Parse(ctx)
	if len(proxies) == 0 {
		log.Warn().Int("errors", len(errs)).Msg("No public proxies available, fallback will connect directly")
		return
	}

	added := b.pool.AddAll(proxies)
	log.Info().Msgf("Added %d public proxies to pool", added)
}

func (b *Bot) newNotifier() notify.Notifier {
	log := logger.WithComponent(b.config.Logger, "notify")
	if !b.config.Telegram.Enabled() {
		log.Info().Msg("Telegram not configured, notifications go to the log only")
		return notify.Nop{Logger: log}
	}
	return notify.NewTelegram(notify.TelegramConfig{
		Token:       b.config.Telegram.Token,
		ChatID:      b.config.Telegram.ChatID,
		APIEndpoint: b.config.Telegram.APIEndpoint,
		Logger:      log,
	}, b.metrics)
}

func (b *Bot) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", b.metrics.Handler())

	b.metricsAddr = ln.Addr()
	b.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := b.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.config.Logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	b.config.Logger.Info().Str("addr", b.metricsAddr.String()).Msg("Serving metrics")
	return nil
}

// Run reports the starting state and farms until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	return b.controller.Run(ctx)
}

// RunOnce reports the starting state and performs a single cycle.
func (b *Bot) RunOnce(ctx context.Context) farm.Result {
	b.controller.Bootstrap(ctx)
	return b.controller.Cycle(ctx)
}

// Stats returns current proxy statistics
func (b *Bot) Stats() map[string]interface{} {
	primary := b.selector.PrimaryStats()
	return map[string]interface{}{
		"public_pool_size":     b.pool.Size(),
		"primary_probes":       primary.Probes,
		"primary_success_rate": primary.SuccessRate(),
	}
}

// MetricsAddr is the bound metrics address, nil when the listener is disabled.
func (b *Bot) MetricsAddr() net.Addr {
	return b.metricsAddr
}

// Close stops the metrics listener.
func (b *Bot) Close() error {
	if b.metricsServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.metricsServer.Shutdown(ctx)
}
