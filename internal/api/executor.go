package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/metrics"
	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/aredoff/farmbot/internal/secret"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxBodySize = 1 << 20

// Config holds the executor's fixed inputs.
type Config struct {
	BaseURL string
	Token   secret.Token
	Timeout time.Duration

	// Transport-level retries for 500, 502, 503, 504 and 429 inside one call.
	TransportRetries    int
	TransportBackoffMin time.Duration
	TransportBackoffMax time.Duration

	// Caller-visible waits.
	TimeoutBackoff    time.Duration
	ConnectionBackoff time.Duration
	RateLimitBackoff  time.Duration

	// MaxAttempts caps whole-call retries after timeouts and connection errors.
	// Zero retries without limit.
	MaxAttempts int

	// MinInterval spaces consecutive calls. Zero disables spacing.
	MinInterval time.Duration

	UserAgents []string
	Logger     zerolog.Logger
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		TransportRetries:    5,
		TransportBackoffMin: 1 * time.Second,
		TransportBackoffMax: 30 * time.Second,
		TimeoutBackoff:      30 * time.Second,
		ConnectionBackoff:   60 * time.Second,
		RateLimitBackoff:    120 * time.Second,
		MaxAttempts:         10,
		UserAgents:          DefaultUserAgents,
		Logger:              zerolog.Nop(),
	}
}

// ProxySelector picks the outbound path for one attempt; nil means direct.
type ProxySelector interface {
	Select(ctx context.Context) *proxy.Endpoint
}

// Executor performs API calls one at a time and never returns an error:
// every failure resolves to an Outcome without a payload.
type Executor struct {
	cfg      Config
	selector ProxySelector
	sleeper  clock.Sleeper
	rand     clock.Rand
	limiter  *rate.Limiter
	metrics  *metrics.Collectors
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewExecutor creates an executor. A nil selector always connects directly.
func NewExecutor(cfg Config, selector ProxySelector, sleeper clock.Sleeper, r clock.Rand, m *metrics.Collectors) *Executor {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if r == nil {
		r = clock.NewRand(0)
	}

	e := &Executor{
		cfg:      cfg,
		selector: selector,
		sleeper:  sleeper,
		rand:     r,
		metrics:  m,
		logger:   cfg.Logger,
	}
	if cfg.MinInterval > 0 {
		e.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return e
}

// Execute performs method on path, selecting a proxy for every attempt.
func (e *Executor) Execute(ctx context.Context, method, path string) Outcome {
	return e.run(ctx, method, path, func(ctx context.Context) *proxy.Endpoint {
		if e.selector == nil {
			return nil
		}
		return e.selector.Select(ctx)
	})
}

// ExecuteVia performs method on path through ep for every attempt.
func (e *Executor) ExecuteVia(ctx context.Context, method, path string, ep *proxy.Endpoint) Outcome {
	return e.run(ctx, method, path, func(context.Context) *proxy.Endpoint { return ep })
}

func (e *Executor) run(ctx context.Context, method, path string, pick func(context.Context) *proxy.Endpoint) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.logger.With().Str("method", method).Str("path", path).Logger()

	for attempt := 1; ; attempt++ {
		out := e.do(ctx, method, path, pick(ctx))
		out.Attempts = attempt

		var wait time.Duration
		switch out.Kind() {
		case KindTimeout:
			log.Error().Int("attempt", attempt).Msg("Request timed out. Retrying...")
			wait = e.cfg.TimeoutBackoff
		case KindConnection:
			log.Error().Err(out.Err).Int("attempt", attempt).Msg("Connection error. Retrying...")
			wait = e.cfg.ConnectionBackoff
		default:
			e.finish(ctx, log, out)
			return out
		}

		if e.cfg.MaxAttempts > 0 && attempt >= e.cfg.MaxAttempts {
			log.Error().Int("attempts", attempt).Msg("Giving up after repeated transport failures")
			e.metrics.ObserveRequest(path, out.Kind().String())
			return out
		}

		if err := e.sleeper.Sleep(ctx, wait); err != nil {
			out.Err = &RequestError{Kind: KindCancelled, Method: method, Path: path, Err: err}
			e.metrics.ObserveRequest(path, KindCancelled.String())
			return out
		}
	}
}

// finish logs the final outcome and applies the rate-limit wait.
func (e *Executor) finish(ctx context.Context, log zerolog.Logger, out Outcome) {
	e.metrics.ObserveRequest(out.Path, out.Kind().String())

	switch out.Kind() {
	case KindNone:
		log.Info().Int("status", out.Status).Msg(successMessage(out.Path))
	case KindRateLimited:
		log.Warn().Dur("wait", e.cfg.RateLimitBackoff).Msg("Rate limited: Too many requests, waiting before retrying...")
		if err := e.sleeper.Sleep(ctx, e.cfg.RateLimitBackoff); err != nil {
			log.Debug().Err(err).Msg("Rate-limit wait interrupted")
		}
	case KindHTTP:
		var re *RequestError
		errors.As(out.Err, &re)
		log.Error().Int("status", out.Status).Str("body", re.Body).Msgf("Unexpected Error %d", out.Status)
	case KindCancelled:
		log.Debug().Msg("Request cancelled")
	default:
		log.Error().Err(out.Err).Msg("Unexpected error")
	}
}

// do performs a single attempt: one session, one proxy, transport retries included.
func (e *Executor) do(ctx context.Context, method, path string, ep *proxy.Endpoint) Outcome {
	out := Outcome{Method: method, Path: path, Proxy: ep}
	fail := func(kind Kind, status int, body string, err error) Outcome {
		out.Status = status
		out.Err = &RequestError{Kind: kind, Method: method, Path: path, Status: status, Body: body, Err: err}
		return out
	}

	if method != http.MethodGet && method != http.MethodPost {
		return fail(KindInvalid, 0, "", errors.New("invalid HTTP method"))
	}

	target, err := url.Parse(strings.TrimRight(e.cfg.BaseURL, "/") + path)
	if err != nil {
		return fail(KindInvalid, 0, "", err)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(KindCancelled, 0, "", err)
		}
	}

	transport, err := ep.Transport(target, e.cfg.Timeout)
	if err != nil {
		return fail(KindInvalid, 0, "", err)
	}
	defer transport.CloseIdleConnections()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return fail(KindInvalid, 0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.Token.Reveal())
	req.Header.Set("Content-Type", "application/json")
	if ua := e.userAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := e.newClient(transport).Do(req)
	if err != nil {
		return fail(classify(ctx, err), 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fail(classify(ctx, err), resp.StatusCode, "", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if !json.Valid(body) {
			return fail(KindMalformed, resp.StatusCode, snippet(body), errors.New("response is not valid JSON"))
		}
		out.Status = resp.StatusCode
		out.Payload = Payload(body)
		return out
	case http.StatusTooManyRequests:
		return fail(KindRateLimited, resp.StatusCode, snippet(body), nil)
	default:
		return fail(KindHTTP, resp.StatusCode, snippet(body), nil)
	}
}

func classify(ctx context.Context, err error) Kind {
	if ctx.Err() != nil {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindConnection
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
