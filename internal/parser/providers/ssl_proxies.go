package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aredoff/farmbot/internal/proxy"
)

// SSLProxiesProvider scrapes the HTML table published by free-proxy-list.net and its mirrors.
type SSLProxiesProvider struct {
	client *http.Client
	url    string
}

func NewSSLProxiesProvider(url string, client *http.Client) *SSLProxiesProvider {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
		}
	}
	return &SSLProxiesProvider{client: client, url: url}
}

func (p *SSLProxiesProvider) Name() string {
	return "SSLProxies"
}

func (p *SSLProxiesProvider) Parse(ctx context.Context) ([]*proxy.Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, p.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var proxies []*proxy.Endpoint

	doc.Find("table tbody tr").Each(func(i int, s *goquery.Selection) {
		tds := s.Find("td")
		if tds.Length() < 2 {
			return
		}

		host := strings.TrimSpace(tds.Eq(0).Text())
		portStr := strings.TrimSpace(tds.Eq(1).Text())
		if !isValidIP(host) || !isValidPort(portStr) {
			return
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			return
		}

		proxies = append(proxies, proxy.FromHostPort(host, port))
	})

	return proxies, nil
}
