package ecp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultPort             = 8060
	DefaultRequestTimeout   = 5 * time.Second
	DefaultKeypressInterval = 100 * time.Millisecond

	maxResponseBody = 1 << 20
)

// Config holds the settings for a Client.
type Config struct {
	// Host is the device IP address or hostname (required).
	Host string

	// Port is the ECP port. Zero means DefaultPort.
	Port int

	// RequestTimeout bounds every individual request. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// KeypressInterval is the minimum spacing between keypresses.
	// Zero means DefaultKeypressInterval; negative disables pacing.
	KeypressInterval time.Duration

	// HTTPClient overrides the transport. Nil uses a client with RequestTimeout.
	HTTPClient *http.Client
}

// Client talks to a single device over ECP.
type Client struct {
	host    string
	port    int
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the device described by cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, ErrInvalidHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.KeypressInterval == 0 {
		cfg.KeypressInterval = DefaultKeypressInterval
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.KeypressInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.KeypressInterval), 1)
	}

	return &Client{
		host:    cfg.Host,
		port:    cfg.Port,
		baseURL: "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: cfg.RequestTimeout,
		http:    httpClient,
		limiter: limiter,
	}, nil
}

// Host returns the device host the client was created for.
func (c *Client) Host() string {
	return c.host
}

// Update queries device-info, apps and active-app and returns a new snapshot.
func (c *Client) Update(ctx context.Context) (*Device, error) {
	body, err := c.get(ctx, "/query/device-info")
	if err != nil {
		return nil, err
	}
	info, state, err := parseDeviceInfo(body)
	if err != nil {
		return nil, err
	}

	body, err = c.get(ctx, "/query/apps")
	if err != nil {
		return nil, err
	}
	apps, err := parseApps(body)
	if err != nil {
		return nil, err
	}

	body, err = c.get(ctx, "/query/active-app")
	if err != nil {
		return nil, err
	}
	app, err := parseActiveApp(body)
	if err != nil {
		return nil, err
	}

	return &Device{
		Info:  info,
		State: state,
		Apps:  apps,
		App:   app,
	}, nil
}

// Remote presses a remote-control key, e.g. "home" or "volume_up".
func (c *Client) Remote(ctx context.Context, key string) error {
	name, err := KeyName(key)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: keypress %s: %w", ErrConnection, key, err)
	}
	return c.post(ctx, "/keypress/"+name, nil)
}

// Launch starts the channel with the given application id.
func (c *Client) Launch(ctx context.Context, appID string) error {
	return c.post(ctx, "/launch/"+url.PathEscape(appID), nil)
}

// Tune switches a Roku TV to the given antenna channel (e.g. "2.1").
func (c *Client) Tune(ctx context.Context, channel string) error {
	return c.post(ctx, "/launch/tvinput.dtv", url.Values{"ch": {channel}})
}

// AppIconURL returns the artwork URL for an application id. No request is made.
func (c *Client) AppIconURL(appID string) string {
	return c.baseURL + "/query/icon/" + url.PathEscape(appID)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrConnection, path, err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodPost, path, query)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	resp.Body.Close() //nolint:errcheck // drained
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: creating request: %w", ErrConnection, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %s %s: %w", ErrConnection, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck // error path
		cancel()
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrConnection, method, path, resp.StatusCode)
	}

	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
