package api

import (
	"errors"
	"fmt"

	"github.com/aredoff/farmbot/internal/proxy"
	"github.com/tidwall/gjson"
)

// Kind classifies why a call produced no result.
type Kind int

const (
	KindNone Kind = iota
	KindTimeout
	KindConnection
	KindRateLimited
	KindHTTP
	KindMalformed
	KindInvalid
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_error"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTP:
		return "http_error"
	case KindMalformed:
		return "malformed"
	case KindInvalid:
		return "invalid"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// RequestError describes a classified failure of one API call.
type RequestError struct {
	Kind   Kind
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, KindNone for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindConnection
}

// Payload is a JSON document returned with status 200.
type Payload []byte

// Get reads a field with gjson path syntax.
func (p Payload) Get(path string) gjson.Result {
	return gjson.GetBytes(p, path)
}

func (p Payload) String() string {
	return gjson.ParseBytes(p).String()
}

// Outcome is the result of Execute: either a Payload or an Err explaining the
// absence of a result. It is never both.
type Outcome struct {
	Method   string
	Path     string
	Status   int
	Payload  Payload
	Proxy    *proxy.Endpoint
	Attempts int
	Err      error
}

// OK reports whether the call returned a payload.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Payload != nil
}

func (o Outcome) Kind() Kind {
	return KindOf(o.Err)
}
