package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/order/application"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
)

const peer = "inventory"

// Client talks to the product service over HTTP.
type Client struct {
	baseURL      string
	http         *http.Client
	timeout      time.Duration
	serviceToken string
	metrics      *metrics.Metrics
}

func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, serviceToken string, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         httpClient,
		timeout:      timeout,
		serviceToken: serviceToken,
		metrics:      m,
	}
}

type productResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

var _ application.InventoryClient = (*Client)(nil)

func (c *Client) GetProduct(ctx context.Context, productID int64, authToken string) (p application.Product, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDownstream(peer, "get_product", err, time.Since(start)) }()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%d", c.baseURL, productID), nil)
	if err != nil {
		return application.Product{}, err
	}
	req.Header.Set("Accept", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return application.Product{}, fmt.Errorf("%w: get product %d: %v", application.ErrDownstreamUnavailable, productID, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return application.Product{}, fmt.Errorf("product %d: %w", productID, application.ErrProductNotFound)
	case resp.StatusCode/100 != 2:
		return application.Product{}, fmt.Errorf("%w: get product %d: status %d", application.ErrDownstreamUnavailable, productID, resp.StatusCode)
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return application.Product{}, fmt.Errorf("%w: decode product %d: %v", application.ErrDownstreamUnavailable, productID, err)
	}
	return application.Product{
		ID:            body.ID,
		Name:          body.Name,
		Price:         body.Price,
		StockQuantity: body.StockQuantity,
	}, nil
}

func (c *Client) ReduceStock(ctx context.Context, productID int64, quantity int) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDownstream(peer, "reduce_stock", err, time.Since(start)) }()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	u := fmt.Sprintf("%s/products/%d/reduce-stock?%s", c.baseURL, productID,
		url.Values{"quantity": {strconv.Itoa(quantity)}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, nil)
	if err != nil {
		return err
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: reduce stock %d: %v", application.ErrDownstreamUnavailable, productID, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode/100 == 2:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("product %d: %w", productID, application.ErrInsufficientStock)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("product %d: %w", productID, application.ErrProductNotFound)
	default:
		return fmt.Errorf("%w: reduce stock %d: status %d", application.ErrDownstreamUnavailable, productID, resp.StatusCode)
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
