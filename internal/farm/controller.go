// Package farm runs the check-status-then-start loop against the farming API.
package farm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aredoff/farmbot/internal/api"
	"github.com/aredoff/farmbot/internal/clock"
	"github.com/aredoff/farmbot/internal/metrics"
	"github.com/aredoff/farmbot/internal/notify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// API is the subset of the executor the controller needs.
type API interface {
	Balance(ctx context.Context) api.Outcome
	Profile(ctx context.Context) api.Outcome
	FarmStatus(ctx context.Context) api.Outcome
	StartFarming(ctx context.Context) api.Outcome
}

// UnknownStatus decides what a cycle does when the status query returned no result.
type UnknownStatus string

const (
	// StartOnUnknown treats an unknown status as idle and attempts a start.
	StartOnUnknown UnknownStatus = "start"
	// SkipOnUnknown leaves the cycle without a start attempt.
	SkipOnUnknown UnknownStatus = "skip"
)

func ParseUnknownStatus(s string) (UnknownStatus, error) {
	switch UnknownStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", StartOnUnknown:
		return StartOnUnknown, nil
	case SkipOnUnknown:
		return SkipOnUnknown, nil
	}
	return "", fmt.Errorf("unknown status policy %q (want start or skip)", s)
}

const (
	MsgStartSuccess = "Farming action successful!"
	MsgStartFailed  = "Farming failed."
)

type Config struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	UnknownStatus UnknownStatus
	Logger        zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MinDelay:      45 * time.Second,
		MaxDelay:      75 * time.Second,
		UnknownStatus: StartOnUnknown,
		Logger:        zerolog.Nop(),
	}
}

// Result names what a single cycle did.
type Result string

const (
	ResultActive  Result = "active"
	ResultStarted Result = "started"
	ResultFailed  Result = "failed"
	ResultSkipped Result = "skipped"
)

type Controller struct {
	cfg      Config
	api      API
	notifier notify.Notifier
	sleeper  clock.Sleeper
	rand     clock.Rand
	metrics  *metrics.Collectors
	logger   zerolog.Logger
}

func NewController(cfg Config, client API, notifier notify.Notifier, sleeper clock.Sleeper, r clock.Rand, m *metrics.Collectors) *Controller {
	if notifier == nil {
		notifier = notify.Nop{Logger: cfg.Logger}
	}
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if r == nil {
		r = clock.NewRand(0)
	}
	if cfg.UnknownStatus == "" {
		cfg.UnknownStatus = StartOnUnknown
	}
	return &Controller{
		cfg:      cfg,
		api:      client,
		notifier: notifier,
		sleeper:  sleeper,
		rand:     r,
		metrics:  m,
		logger:   cfg.Logger,
	}
}

// Bootstrap reports the starting balance and profile.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.logger.Info().Msg("Starting automation bot...")

	balance := c.api.Balance(ctx)
	profile := c.api.Profile(ctx)

	if balance.OK() {
		c.observeBalance(balance.Payload)
		c.notify(ctx, fmt.Sprintf("Current balance: %s", balance.Payload))
	}
	if profile.OK() {
		c.notify(ctx, fmt.Sprintf("Profile Info: %s", profile.Payload))
	}
}

// Cycle performs one status check and, when farming is not active, one start attempt.
func (c *Controller) Cycle(ctx context.Context) Result {
	log := c.logger.With().Str("cycle", uuid.NewString()).Logger()

	result := c.cycle(ctx, log)
	c.metrics.ObserveCycle(string(result))
	return result
}

func (c *Controller) cycle(ctx context.Context, log zerolog.Logger) Result {
	status := c.api.FarmStatus(ctx)
	if status.OK() && status.Payload.Get("active").Bool() {
		c.metrics.SetFarmingActive(true)
		log.Info().Msg("Farming is already active.")
		log.Info().Msg("Skipping farming start request as it is already active.")
		return ResultActive
	}
	c.metrics.SetFarmingActive(false)

	if !status.OK() {
		if ctx.Err() != nil {
			return ResultSkipped
		}
		if c.cfg.UnknownStatus == SkipOnUnknown {
			log.Warn().Stringer("reason", status.Kind()).Msg("Farming status unknown, skipping start")
			return ResultSkipped
		}
		log.Warn().Stringer("reason", status.Kind()).Msg("Farming status unknown, treating as idle")
	}

	start := c.api.StartFarming(ctx)
	if ctx.Err() != nil {
		return ResultSkipped
	}
	if !start.OK() {
		log.Error().Stringer("reason", start.Kind()).Msg("Farming action failed")
		c.notify(ctx, MsgStartFailed)
		return ResultFailed
	}

	c.notify(ctx, MsgStartSuccess)
	c.progressUpdate(ctx)
	return ResultStarted
}

func (c *Controller) progressUpdate(ctx context.Context) {
	balance := c.api.Balance(ctx)
	if !balance.OK() {
		return
	}
	c.observeBalance(balance.Payload)
	c.notify(ctx, fmt.Sprintf("Farming Progress Update: Current Balance: %s", balanceText(balance.Payload)))
}

// Run reports the starting state, then cycles with a jittered pause until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.Bootstrap(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Cycle(ctx)

		delay := c.jitter()
		c.logger.Debug().Dur("delay", delay).Msg("Waiting before next cycle")
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info().Msg("Stopping farm loop")
			}
			return err
		}
	}
}

// jitter draws a whole number of seconds uniformly from [MinDelay, MaxDelay].
func (c *Controller) jitter() time.Duration {
	lo := c.cfg.MinDelay.Truncate(time.Second)
	hi := c.cfg.MaxDelay.Truncate(time.Second)
	if hi <= lo {
		return lo
	}
	steps := int((hi - lo) / time.Second)
	return lo + time.Duration(c.rand.IntN(steps+1))*time.Second
}

func (c *Controller) notify(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	c.notifier.Notify(ctx, text)
}

func (c *Controller) observeBalance(p api.Payload) {
	if v := p.Get("balance"); v.Exists() {
		c.metrics.SetBalance(v.Float())
	}
}

// balanceText prefers the balance field and falls back to the whole document.
func balanceText(p api.Payload) string {
	if v := p.Get("balance"); v.Exists() {
		return v.String()
	}
	return p.String()
}
