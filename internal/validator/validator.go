package validator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aredoff/farmbot/internal/proxy"
)

const DefaultTestURL = "https://httpbin.org/ip"

// Validator runs liveness probes: one short GET through an endpoint against a
// known-reachable URL. Failures are never retried.
type Validator struct {
	timeout     time.Duration
	testURL     string
	testHeaders map[string]string
}

func NewValidator() *Validator {
	return NewValidatorWithOptions(5*time.Second, DefaultTestURL)
}

// NewValidatorWithOptions creates validator with custom options
func NewValidatorWithOptions(timeout time.Duration, testURL string) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if testURL == "" {
		testURL = DefaultTestURL
	}
	return &Validator{
		timeout: timeout,
		testURL: testURL,
		testHeaders: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			"Accept":          "application/json,text/plain,*/*",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// Probe reports whether the test URL answered 200 through ep within the timeout.
func (v *Validator) Probe(ctx context.Context, ep *proxy.Endpoint) bool {
	target, err := url.Parse(v.testURL)
	if err != nil {
		return false
	}

	transport, err := ep.Transport(target, v.timeout)
	if err != nil {
		return false
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   v.timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.testURL, nil)
	if err != nil {
		return false
	}

	for k, v := range v.testHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return resp.StatusCode == http.StatusOK
}
