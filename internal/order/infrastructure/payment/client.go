package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/order/application"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
)

const peer = "payment"

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, timeout: timeout, metrics: m}
}

type createSessionRequest struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	CustomerEmail string `json:"customerEmail"`
	ProductName   string `json:"productName"`
}

var _ application.PaymentClient = (*Client)(nil)

// CreateSession asks the payment service for a hosted checkout page and
// returns its URL.
func (c *Client) CreateSession(ctx context.Context, in application.PaymentRequest, authToken string) (checkoutURL string, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDownstream(peer, "create_session", err, time.Since(start)) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(createSessionRequest(in))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/create-session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create session: %v", application.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read session response: %v", application.ErrDownstreamUnavailable, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: create session: status %d", application.ErrDownstreamUnavailable, resp.StatusCode)
	}

	return parseURL(raw)
}

// parseURL accepts a bare URL or a JSON encoded string.
func parseURL(raw []byte) (string, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var decoded string
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return "", fmt.Errorf("%w: malformed session url: %v", application.ErrDownstreamUnavailable, err)
		}
		s = decoded
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty session url", application.ErrDownstreamUnavailable)
	}
	return s, nil
}
