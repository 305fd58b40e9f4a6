package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

type Type int

const (
	HTTP Type = iota
	HTTPS
	SOCKS4
	SOCKS5
)

func (t Type) String() string {
	switch t {
	case HTTP:
		return "http"
	case HTTPS:
		return "https"
	case SOCKS4:
		return "socks4"
	case SOCKS5:
		return "socks5"
	}
	return "unknown"
}

// Origin tells where an endpoint came from.
type Origin int

const (
	Primary Origin = iota
	Public
)

func (o Origin) String() string {
	if o == Public {
		return "public"
	}
	return "primary"
}

var ErrEmptyAddress = errors.New("empty proxy address")

// Endpoint is an outbound path: Plain routes http:// targets, Secure routes
// https:// targets. A nil *Endpoint means a direct connection.
type Endpoint struct {
	Plain  *url.URL
	Secure *url.URL
	Origin Origin
}

// Parse builds an endpoint from the plain and secure proxy addresses. A bare
// host:port is taken as an HTTP proxy and an empty secure address reuses plain.
func Parse(plain, secure string, origin Origin) (*Endpoint, error) {
	p, err := parseURL(plain)
	if err != nil {
		return nil, err
	}

	s := p
	if strings.TrimSpace(secure) != "" {
		if s, err = parseURL(secure); err != nil {
			return nil, err
		}
	}

	return &Endpoint{Plain: p, Secure: s, Origin: origin}, nil
}

// FromHostPort builds a public endpoint for an HTTP proxy at host:port.
func FromHostPort(host string, port int) *Endpoint {
	u := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	return &Endpoint{Plain: u, Secure: u, Origin: Public}
}

func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyAddress
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	if _, ok := typeOf(u.Scheme); !ok {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("proxy address %s needs host and port", u.Redacted())
	}
	if port, err := strconv.Atoi(u.Port()); err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("proxy address %s has invalid port", u.Redacted())
	}
	return u, nil
}

func typeOf(scheme string) (Type, bool) {
	switch strings.ToLower(scheme) {
	case "http":
		return HTTP, true
	case "https":
		return HTTPS, true
	case "socks4", "socks4a":
		return SOCKS4, true
	case "socks5", "socks5h":
		return SOCKS5, true
	}
	return 0, false
}

// URLFor returns the proxy URL used for targets with the given scheme.
func (e *Endpoint) URLFor(scheme string) *url.URL {
	if e == nil {
		return nil
	}
	if strings.EqualFold(scheme, "https") {
		return e.Secure
	}
	return e.Plain
}

// Type reports the proxy protocol used for targets with the given scheme.
func (e *Endpoint) Type(scheme string) Type {
	u := e.URLFor(scheme)
	if u == nil {
		return HTTP
	}
	t, _ := typeOf(u.Scheme)
	return t
}

// String renders the endpoint without credentials.
func (e *Endpoint) String() string {
	if e == nil {
		return "direct"
	}
	plain := e.Plain.Redacted()
	if secure := e.Secure.Redacted(); secure != plain {
		return plain + " | " + secure
	}
	return plain
}
