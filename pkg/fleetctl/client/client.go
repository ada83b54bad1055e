// Package client is fleetctl's HTTP client for the node and federation
// surfaces.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telekom/fleet-coordinator/pkg/version"
)

const defaultTimeout = 30 * time.Second

type Options struct {
	Server                string
	Token                 string
	CAFile                string
	InsecureSkipTLSVerify bool
	Timeout               time.Duration
}

type Client struct {
	rest *resty.Client
}

func New(opts Options) (*Client, error) {
	if opts.Server == "" {
		return nil, errors.New("server is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipTLSVerify,
	}
	if opts.CAFile != "" {
		data, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, errors.New("failed to parse CA file")
		}
		tlsConfig.RootCAs = pool
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(opts.Server, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent("fleetctl")).
		SetTLSClientConfig(tlsConfig)
	if opts.Token != "" {
		rest.SetAuthToken(opts.Token)
	}

	return &Client{rest: rest}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	req := c.rest.R().SetContext(ctx).ForceContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *resty.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	body := resp.Body()
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status()
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Message: msg}
}

// HTTPError carries a non-2xx response so callers can branch on the code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}
