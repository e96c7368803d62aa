// Package stripex speaks the two slices of the Stripe API this service
// needs: creating hosted Checkout Sessions and verifying webhook
// signatures. Plain HTTP, no SDK.
package stripex

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
)

const DefaultBaseURL = "https://api.stripe.com"

type ClientOptions struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  opts.SecretKey,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// LineItem is one hosted-checkout line. When PriceID is set it wins;
// otherwise inline price_data is sent.
type LineItem struct {
	PriceID         string
	Name            string
	Description     string
	Currency        string
	UnitAmountCents int64
	Quantity        int32
}

type SessionParams struct {
	OrderID    int64
	SuccessURL string
	CancelURL  string
	LineItems  []LineItem
}

type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
}

// CreateCheckoutSession opens a hosted payment page. The order id rides in
// metadata so the webhook can find its way back.
func (c *Client) CreateCheckoutSession(ctx context.Context, p SessionParams) (CheckoutSession, error) {
	if c.secretKey == "" {
		return CheckoutSession{}, fmt.Errorf("stripe: secret key is not configured")
	}
	if len(p.LineItems) == 0 {
		return CheckoutSession{}, fmt.Errorf("stripe: session needs at least one line item")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("metadata[order_id]", strconv.FormatInt(p.OrderID, 10))
	for i, li := range p.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(int64(li.Quantity), 10))
		if li.PriceID != "" {
			form.Set(prefix+"[price]", li.PriceID)
			continue
		}
		form.Set(prefix+"[price_data][currency]", li.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmountCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		if li.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", li.Description)
		}
	}

	body, err := c.do(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return CheckoutSession{}, err
	}
	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: decode session: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, fmt.Errorf("stripe: session response missing id or url")
	}
	return session, nil
}

func (c *Client) do(ctx context.Context, path string, form url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	encoded := form.Encode()

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		var parsed struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("stripe: status=%d type=%s message=%s",
				resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		return nil, fmt.Errorf("stripe: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfterHeader)); err == nil && seconds > 0 {
		d := time.Duration(seconds) * time.Second
		if d > c.maxDelay {
			return c.maxDelay
		}
		return d
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
