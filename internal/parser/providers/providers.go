package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/aredoff/farmbot/internal/proxy"
)

// Parser interface for all proxy providers
type Parser interface {
	Parse(ctx context.Context) ([]*proxy.Endpoint, error)
	Name() string
}

// ForURL picks the provider matching the directory's publishing format:
// HTML pages are scraped as tables, everything else is read as a text list.
func ForURL(raw string, client *http.Client) Parser {
	name := raw
	path := ""
	if u, err := url.Parse(raw); err == nil {
		name = u.Host
		path = strings.ToLower(u.Path)
	}

	if strings.HasSuffix(path, ".html") || strings.HasSuffix(path, ".htm") || path == "" || path == "/" {
		return NewSSLProxiesProvider(raw, client)
	}
	return NewTextListProvider(name, raw, client)
}
