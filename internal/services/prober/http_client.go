package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	FollowRedirects bool
	VerifyTLS       bool
}

// Pinger performs one probe. A transport failure yields NotOK together with
// the error; any response yields FromStatus(code) and a nil error.
type Pinger interface {
	Ping(ctx context.Context, url string) (code int, state health.Health, err error)
}

type Client struct {
	c   *http.Client
	cfg Config
}

var _ Pinger = (*Client)(nil)

func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	client := &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(transport)}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &Client{c: client, cfg: cfg}
}

func (cl *Client) Ping(ctx context.Context, url string) (int, health.Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, health.NotOK, fmt.Errorf("build request: %w", err)
	}
	if cl.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cl.cfg.UserAgent)
	}
	resp, err := cl.c.Do(req)
	if err != nil {
		return 0, health.NotOK, err
	}
	defer resp.Body.Close()
	// drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)

	return resp.StatusCode, health.FromStatus(resp.StatusCode), nil
}
