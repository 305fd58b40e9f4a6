package parser

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aredoff/farmbot/internal/parser/providers"
	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/rs/zerolog"
)

// DefaultDirectoryURLs are tried in order until one yields proxies.
var DefaultDirectoryURLs = []string{
	"https://www.proxy-list.download/api/v1/get?type=http",
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	"https://free-proxy-list.net/ssl-proxy.html",
}

// Directory fetches public proxy candidates from an ordered list of providers.
type Directory struct {
	parsers []providers.Parser
	logger  zerolog.Logger
}

// NewDirectory creates a directory with one provider per URL.
func NewDirectory(urls []string, client *http.Client, logger zerolog.Logger) *Directory {
	d := &Directory{logger: logger}
	for _, u := range urls {
		d.parsers = append(d.parsers, providers.ForURL(u, client))
	}
	return d
}

// NewDirectoryWithParsers creates a directory from explicit providers.
func NewDirectoryWithParsers(logger zerolog.Logger, parsers ...providers.Parser) *Directory {
	return &Directory{parsers: parsers, logger: logger}
}

// Parse returns the de-duplicated list of the first provider that yields any
// proxies, plus the errors of the providers tried before it.
func (d *Directory) Parse(ctx context.Context) ([]*proxy.Endpoint, []error) {
	if len(d.parsers) == 0 {
		return nil, []error{fmt.Errorf("no parsers available")}
	}

	var errs []error
	for _, p := range d.parsers {
		if err := ctx.Err(); err != nil {
			return nil, append(errs, err)
		}

		found, err := p.Parse(ctx)
		if err != nil {
			d.logger.Error().Err(err).Str("provider", p.Name()).Msg("Failed to fetch free proxies")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		unique := dedupe(found)
		if len(unique) == 0 {
			d.logger.Info().Str("provider", p.Name()).Msg("No proxies found")
			continue
		}

		d.logger.Info().Int("count", len(unique)).Str("provider", p.Name()).Msg("Fetched public proxy list")
		return unique, errs
	}

	return nil, errs
}

func dedupe(in []*proxy.Endpoint) []*proxy.Endpoint {
	seen := make(map[string]struct{}, len(in))
	out := make([]*proxy.Endpoint, 0, len(in))
	for _, ep := range in {
		key := ep.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ep)
	}
	return out
}
