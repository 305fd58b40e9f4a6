package api

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// retryStatuses are retried inside one call before the outer policy sees the response.
var retryStatuses = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
	http.StatusTooManyRequests:     {},
}

// retryOnStatus retries listed statuses only. Transport errors go straight back
// to the executor, which applies its own timeout and connection backoff.
func retryOnStatus(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	_, ok := retryStatuses[resp.StatusCode]
	return ok, nil
}

func (e *Executor) newClient(transport http.RoundTripper) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   e.cfg.Timeout,
	}
	client.RetryMax = e.cfg.TransportRetries
	client.RetryWaitMin = e.cfg.TransportBackoffMin
	client.RetryWaitMax = e.cfg.TransportBackoffMax
	client.CheckRetry = retryOnStatus
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = leveledLogger{e.logger}
	return client
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.l.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.l.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.l.Trace().Fields(keysAndValues).Msg(msg)
}
