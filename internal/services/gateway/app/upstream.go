package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Upstream is one backing service behind a circuit breaker. The breaker
// trips on consecutive transport failures and serves fast errors while
// the service recovers.
type Upstream struct {
	name string
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

func NewUpstream(name, base string, timeout time.Duration, fails int, openFor, interval time.Duration) *Upstream {
	return &Upstream{
		name: name,
		base: strings.TrimRight(strings.TrimSpace(base), "/"),
		http: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     name,
			Interval: interval,
			Timeout:  openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(fails)
			},
		}),
	}
}

func (u *Upstream) State() string { return u.cb.State().String() }

// GetJSON fetches a fixed path and decodes the body into out. Any
// non-2xx status counts against the breaker, these paths must always
// answer when the service is healthy.
func (u *Upstream) GetJSON(ctx context.Context, path string, out any) error {
	_, err := u.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s: GET %s -> %s", u.name, path, resp.Status)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

type forwarded struct {
	status      int
	contentType string
	body        []byte
}

// Forward relays a request and hands back the upstream's own status and
// body. Only transport errors and 5xx answers count against the
// breaker, a 4xx means the upstream is healthy and the request was bad.
func (u *Upstream) Forward(ctx context.Context, method, path string, body []byte) (forwarded, error) {
	res, err := u.cb.Execute(func() (any, error) {
		var rd io.Reader
		if len(body) > 0 {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.base+path, rd)
		if err != nil {
			return nil, err
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := u.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s: %s %s -> %s", u.name, method, path, resp.Status)
		}
		return forwarded{
			status:      resp.StatusCode,
			contentType: resp.Header.Get("Content-Type"),
			body:        data,
		}, nil
	})
	if err != nil {
		return forwarded{}, err
	}
	return res.(forwarded), nil
}
