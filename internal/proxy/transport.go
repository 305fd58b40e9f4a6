package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"
)

// Transport builds a single-use transport that reaches target through the
// endpoint. A nil endpoint dials directly and ignores proxy environment variables.
func (e *Endpoint) Transport(target *url.URL, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}

	if e == nil {
		return transport, nil
	}

	u := e.URLFor(target.Scheme)
	if u == nil {
		return nil, errors.New("endpoint has no proxy address for " + target.Scheme)
	}

	switch t, _ := typeOf(u.Scheme); t {
	case HTTP, HTTPS:
		transport.Proxy = http.ProxyURL(u)
	case SOCKS5:
		var auth *xproxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: password}
		}
		d, err := xproxy.SOCKS5("tcp", u.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %s: %w", u.Redacted(), err)
		}
		if cd, ok := d.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	case SOCKS4:
		dial := socks.Dial(fmt.Sprintf("%s://%s?timeout=%s", u.Scheme, u.Host, timeout))
		if dial == nil {
			return nil, errors.New("failed to create SOCKS proxy dialer")
		}
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}
	default:
		return nil, errors.New("unsupported proxy type")
	}

	return transport, nil
}
