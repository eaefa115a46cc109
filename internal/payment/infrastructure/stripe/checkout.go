package stripe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmehra2102/checkout-saga/internal/payment/application"
	"github.com/dmehra2102/checkout-saga/pkg/metrics"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

const metadataOrderID = "orderId"

type CheckoutConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
	Timeout    time.Duration
	// BackendURL overrides the Stripe API host; empty means the real API.
	BackendURL string
}

// Checkout opens hosted Stripe Checkout sessions.
type Checkout struct {
	client  session.Client
	cfg     CheckoutConfig
	metrics *metrics.Metrics
}

func NewCheckout(cfg CheckoutConfig, httpClient *http.Client, m *metrics.Metrics) *Checkout {
	backendCfg := &stripego.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripego.String(cfg.BackendURL)
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripego.CurrencyUSD)
	}
	return &Checkout{
		client:  session.Client{B: stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg), Key: cfg.SecretKey},
		cfg:     cfg,
		metrics: m,
	}
}

var _ application.CheckoutProvider = (*Checkout)(nil)

func (c *Checkout) CreateSession(ctx context.Context, req application.CheckoutRequest) (out application.CheckoutSession, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDownstream("stripe", "checkout_session", err, time.Since(start)) }()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	params := &stripego.CheckoutSessionParams{
		Mode:          stripego.String(string(stripego.CheckoutSessionModePayment)),
		CustomerEmail: stripego.String(req.CustomerEmail),
		SuccessURL:    stripego.String(c.cfg.SuccessURL),
		CancelURL:     stripego.String(c.cfg.CancelURL),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Quantity: stripego.Int64(1),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(c.cfg.Currency),
				UnitAmount: stripego.Int64(req.Amount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.ProductName),
				},
			},
		}},
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: req.OrderID},
		},
	}
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.Context = ctx

	s, err := c.client.New(params)
	if err != nil {
		return application.CheckoutSession{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return application.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
