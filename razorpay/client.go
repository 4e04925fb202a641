// Package razorpay wraps the parts of the Razorpay REST API the service needs:
// orders, refunds and signature checks.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const DefaultBaseURL = "https://api.razorpay.com/v1"

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      hc,
	}
}

// KeySecret is the shared secret used for payment signatures.
func (c *Client) KeySecret() string {
	return c.keySecret
}

type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type CreateOrderParams struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
}

type CreateRefundParams struct {
	Amount  int64             `json:"amount,omitempty"`
	Receipt string            `json:"receipt,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

func (c *Client) CreateOrder(ctx context.Context, p CreateOrderParams) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRefund refunds a captured payment. Amount 0 means a full refund.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, p CreateRefundParams) (*Refund, error) {
	var out Refund
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRefunds returns the refunds already issued for a payment.
func (c *Client) ListRefunds(ctx context.Context, paymentID string) ([]Refund, error) {
	var out struct {
		Items []Refund `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID+"/refunds?count=100", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("razorpay: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("razorpay: build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("razorpay %s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code = e.Error.Code
			apiErr.Description = e.Error.Description
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("razorpay %s %s: decode response: %w", method, path, err)
	}
	return nil
}
