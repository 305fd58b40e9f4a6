package providers

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aredoff/farmbot/internal/proxy"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// TextListProvider reads plain "host:port" lines, one proxy per line. The
// proxy-list.download API and the TheSpeedX GitHub lists use this format.
type TextListProvider struct {
	client *http.Client
	name   string
	url    string
}

func NewTextListProvider(name, url string, client *http.Client) *TextListProvider {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		}
	}
	return &TextListProvider{client: client, name: name, url: url}
}

func (p *TextListProvider) Name() string {
	return p.name
}

func (p *TextListProvider) Parse(ctx context.Context) ([]*proxy.Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, p.name)
	}

	var proxies []*proxy.Endpoint
	scanner := bufio.NewScanner(resp.Body)

	for scanner.Scan() {
		host, port, ok := parseHostPort(scanner.Text())
		if !ok {
			continue
		}
		proxies = append(proxies, proxy.FromHostPort(host, port))
	}

	return proxies, scanner.Err()
}
