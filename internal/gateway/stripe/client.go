// Package stripe implements the gateway adapter against the Stripe REST
// API. Requests are form-encoded the way the API expects; responses are
// decoded from JSON. The client holds its own credential — nothing here
// touches process-global state.
package stripe

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

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kassa/internal/gateway"
)

// DefaultBaseURL is the live Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

const (
	defaultTimeout = 10 * time.Second
	// invalidation calls (coupon delete, tax rate deactivate) are idempotent
	// and safe to retry; creations are never retried.
	maxRetries     = 2
	defaultBackoff = 250 * time.Millisecond
)

// Config configures the Stripe client.
type Config struct {
	// SecretKey is the API credential sent as a bearer token.
	SecretKey string
	// BaseURL overrides the API endpoint; empty means DefaultBaseURL.
	BaseURL string
	// Timeout bounds each HTTP call including retries' individual attempts.
	Timeout time.Duration
	// RetryBackoff is the pause between retry attempts of idempotent calls.
	RetryBackoff time.Duration
}

// Client talks to the Stripe REST API. Safe for concurrent use.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
	backoff   time.Duration
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a Stripe client from cfg.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	return &Client{
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		backoff:   backoff,
	}
}

// CreateSession creates a hosted checkout session and returns its id.
func (c *Client) CreateSession(ctx context.Context, req gateway.SessionRequest) (string, error) {
	form := url.Values{}
	form.Set("mode", req.Mode)
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("payment_method_types[0]", "card")

	for i, line := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", string(line.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(line.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", line.Name)
		if line.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", line.Description)
		}
		form.Set(prefix+"[quantity]", strconv.Itoa(line.Quantity))
	}

	if req.CouponID != "" {
		form.Set("discounts[0][coupon]", req.CouponID)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "create_session", http.MethodPost, "/v1/checkout/sessions", form, true, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreatePaymentIntent creates a payment intent and returns its client
// secret for client-side confirmation.
func (c *Client) CreatePaymentIntent(ctx context.Context, req gateway.IntentRequest) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", string(req.Currency))
	form.Set("description", req.Description)
	form.Set("payment_method_types[0]", "card")

	var resp struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := c.call(ctx, "create_payment_intent", http.MethodPost, "/v1/payment_intents", form, true, &resp); err != nil {
		return "", err
	}
	return resp.ClientSecret, nil
}

// CreateCoupon creates a percentage coupon and returns its id.
func (c *Client) CreateCoupon(ctx context.Context, percentOff decimal.Decimal) (string, error) {
	form := url.Values{}
	form.Set("percent_off", percentOff.String())

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "create_coupon", http.MethodPost, "/v1/coupons", form, true, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteCoupon deletes a coupon. A 404 means the coupon is already gone,
// which is the desired end state, so it is not an error.
func (c *Client) DeleteCoupon(ctx context.Context, couponID string) error {
	err := c.callRetry(ctx, "delete_coupon", http.MethodDelete, "/v1/coupons/"+url.PathEscape(couponID), nil, nil)
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// CreateTaxRate creates a tax rate object and returns its id.
func (c *Client) CreateTaxRate(ctx context.Context, displayName string, percentage decimal.Decimal, inclusive bool) (string, error) {
	form := url.Values{}
	form.Set("display_name", displayName)
	form.Set("percentage", percentage.String())
	form.Set("inclusive", strconv.FormatBool(inclusive))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, "create_tax_rate", http.MethodPost, "/v1/tax_rates", form, true, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeactivateTaxRate marks a tax rate inactive. Stripe offers no delete for
// tax rates.
func (c *Client) DeactivateTaxRate(ctx context.Context, rateID string) error {
	form := url.Values{}
	form.Set("active", "false")
	return c.callRetry(ctx, "deactivate_tax_rate", http.MethodPost, "/v1/tax_rates/"+url.PathEscape(rateID), form, nil)
}

// callRetry performs an idempotent call with bounded retries on transport
// errors and 5xx responses.
func (c *Client) callRetry(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.call(ctx, op, method, path, form, false, out)
		if err == nil {
			return nil
		}

		var gwErr *gateway.Error
		retryable := !errors.As(err, &gwErr) || gwErr.Status == 0 || gwErr.Status >= 500
		if !retryable || attempt >= maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
}

// call performs a single API request. idempotencyKey guards creation calls
// against duplicated external resources since those are never retried here
// but may be retried by an upstream caller.
func (c *Client) call(ctx context.Context, op, method, path string, form url.Values, idempotencyKey bool, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &gateway.Error{Op: op, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &gateway.Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &gateway.Error{Op: op, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &gateway.Error{Op: op, Status: resp.StatusCode, Message: apiErrorMessage(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &gateway.Error{Op: op, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

// apiErrorMessage extracts the error message from a Stripe error body,
// falling back to the raw body.
func apiErrorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
