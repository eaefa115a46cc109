package orderclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	"github.com/dmehra2102/checkout-saga/pkg/auth"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
)

const peer = "order"

// Client calls the order service's internal confirm and cancel endpoints.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewClient(baseURL, internalSecret string, httpClient *http.Client, timeout time.Duration, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  internalSecret,
		http:    httpClient,
		timeout: timeout,
		metrics: m,
	}
}

var _ application.OrderNotifier = (*Client)(nil)

func (c *Client) Confirm(ctx context.Context, orderID string) error {
	return c.transition(ctx, orderID, "confirm")
}

func (c *Client) Cancel(ctx context.Context, orderID string) error {
	return c.transition(ctx, orderID, "cancel")
}

func (c *Client) transition(ctx context.Context, orderID, action string) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDownstream(peer, action, err, time.Since(start)) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := fmt.Sprintf("%s/orders/%s/%s", c.baseURL, url.PathEscape(orderID), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set(auth.InternalSecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s order %s: %w", action, orderID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s order %s: %w", action, orderID, application.ErrUnauthorizedInternalCall)
	default:
		return fmt.Errorf("%s order %s: status %d", action, orderID, resp.StatusCode)
	}
}
