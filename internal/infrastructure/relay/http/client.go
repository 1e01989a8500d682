package httprelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/circuitbreaker"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRequestsPerSecond ...
	DefaultRequestsPerSecond = 20
	// DefaultTimeout bounds requests made with a context without deadline.
	DefaultTimeout = 15 * time.Second
)

var _ ports.Relay = (*Client)(nil)

// ClientOpts ...
type ClientOpts struct {
	URL               string
	RequestsPerSecond int
	Timeout           time.Duration
}

func (o *ClientOpts) validate() error {
	if o.URL == "" {
		return fmt.Errorf("missing relay url")
	}
	if _, err := url.ParseRequestURI(o.URL); err != nil {
		return fmt.Errorf("invalid relay url: %s", err)
	}
	if o.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}
	if o.RequestsPerSecond == 0 {
		o.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// Client is a ports.Relay talking to a remote relay. Requests are rate
// limited and go through a circuit breaker: transport failures and server
// errors open it, refused bundles don't.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cb         *gobreaker.CircuitBreaker
}

// NewClient returns a new relay client.
func NewClient(opts ClientOpts) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    ratelimit.New(opts.RequestsPerSecond),
		cb:         circuitbreaker.NewCircuitBreaker("relay"),
	}, nil
}

func (c *Client) SubmitBundle(
	ctx context.Context, bundle ports.Bundle,
) (*ports.SubmitResponse, error) {
	body, err := json.Marshal(newBundleJSON(bundle))
	if err != nil {
		return nil, err
	}

	status, resp, err := c.do(ctx, http.MethodPost, bundlesPath, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(status, resp)
	}

	var res submitResponseJSON
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("failed to parse relay response: %s", err)
	}
	return &ports.SubmitResponse{
		BundleID: res.BundleID,
		Response: parseRelayResponse(res.Response),
		Reason:   res.Reason,
	}, nil
}

func (c *Client) GetBundleStatus(
	ctx context.Context, bundleID string,
) (*ports.BundleStatus, error) {
	path := fmt.Sprintf("%s/%s", bundlesPath, url.PathEscape(bundleID))
	status, resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &ports.BundleStatus{
			BundleID: bundleID,
			Status:   domain.ConfirmationUnknown,
		}, nil
	}
	if status != http.StatusOK {
		return nil, parseError(status, resp)
	}

	var res bundleStatusJSON
	if err := json.Unmarshal(resp, &res); err != nil {
		return nil, fmt.Errorf("failed to parse bundle status: %s", err)
	}
	return &ports.BundleStatus{
		BundleID:          res.BundleID,
		Status:            parseConfirmationStatus(res.Status),
		AppliedOperations: res.AppliedOperations,
	}, nil
}

func (c *Client) GetBalance(ctx context.Context, addr string) (uint64, error) {
	path := fmt.Sprintf("%s/%s", balancesPath, url.PathEscape(addr))
	status, resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, parseError(status, resp)
	}

	var res balanceJSON
	if err := json.Unmarshal(resp, &res); err != nil {
		return 0, fmt.Errorf("failed to parse balance: %s", err)
	}
	return res.Balance, nil
}

// do makes the request and returns status code and body of the response.
// Requests that don't reach the relay, or for which it fails with a 5xx,
// count as failures for the circuit breaker. A request cancelled or expired
// is reported as a relay timeout since the relay might have received it.
func (c *Client) do(
	ctx context.Context, method, path string, body []byte,
) (int, []byte, error) {
	c.limiter.Take()

	type response struct {
		status int
		body   []byte
	}

	iResp, err := c.cb.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf(
				"relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(buf)),
			)
		}
		return response{resp.StatusCode, buf}, nil
	})
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return 0, nil, fmt.Errorf("%w: %s", domain.ErrRelayTimeout, err)
		}
		return 0, nil, err
	}

	resp := iResp.(response)
	return resp.status, resp.body, nil
}

func parseError(status int, body []byte) error {
	var res errorJSON
	if err := json.Unmarshal(body, &res); err == nil {
		if err, ok := codeToError[res.Code]; ok {
			return fmt.Errorf("%w: %s", err, res.Message)
		}
		if res.Message != "" {
			return fmt.Errorf("relay returned status %d: %s", status, res.Message)
		}
	}
	return fmt.Errorf("relay returned status %d", status)
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
