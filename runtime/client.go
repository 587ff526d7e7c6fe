package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL    = "https://quantum.cloud.ibm.com/api/v1"
	DefaultAPIVersion = "2025-05-01"
)

var (
	ErrNoCredentials = errors.New("no IBM Quantum token configured")
	ErrJobFailed     = errors.New("runtime job did not complete")
)

// Config holds the account and transport settings for the runtime API.
type Config struct {
	BaseURL      string
	Token        string
	Instance     string // service CRN, sent as Service-CRN
	APIVersion   string
	Timeout      time.Duration
	PollInterval time.Duration
	JobTimeout   time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// Regulator gates outgoing requests. Limit reports true while the caller
// should hold back.
type Regulator interface {
	Limit() bool
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to the IBM Quantum Runtime REST API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter Regulator
	logger  *log.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func WithRegulator(r Regulator) ClientOption {
	return func(c *Client) {
		c.limiter = r
	}
}

func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrNoCredentials
	}

	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	for c.limiter.Limit() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("IBM-API-Version", c.cfg.APIVersion)
	if c.cfg.Instance != "" {
		req.Header.Set("Service-CRN", c.cfg.Instance)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("runtime request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s %s", method, path)
	}

	if resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "decode %s %s", method, path)
}

// ListBackends returns the device names visible to the account.
func (c *Client) ListBackends(ctx context.Context) ([]string, error) {
	var out struct {
		Devices []string `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/backends", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// BackendStatus is the live state of a device.
type BackendStatus struct {
	State          bool   `json:"state"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	LengthQueue    int    `json:"length_queue"`
	BackendVersion string `json:"backend_version"`
}

func (c *Client) BackendStatus(ctx context.Context, name string) (BackendStatus, error) {
	var out BackendStatus
	err := c.do(ctx, http.MethodGet, "/backends/"+url.PathEscape(name)+"/status", nil, &out)
	return out, err
}

// BackendConfiguration is the static description of a device.
type BackendConfiguration struct {
	BackendName string   `json:"backend_name"`
	NumQubits   int      `json:"n_qubits"`
	Simulator   bool     `json:"simulator"`
	BasisGates  []string `json:"basis_gates"`
	CouplingMap [][2]int `json:"coupling_map"`
}

func (c *Client) BackendConfiguration(ctx context.Context, name string) (BackendConfiguration, error) {
	var out BackendConfiguration
	err := c.do(ctx, http.MethodGet, "/backends/"+url.PathEscape(name)+"/configuration", nil, &out)
	return out, err
}

// OpenSession starts a dedicated session on backend and returns its id.
func (c *Client) OpenSession(ctx context.Context, backendName string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]any{"backend": backendName, "mode": "dedicated"}
	if err := c.do(ctx, http.MethodPost, "/sessions", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CloseSession stops the session from accepting new jobs.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id)+"/close", nil, nil)
}
