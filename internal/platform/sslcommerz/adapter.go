// Package sslcommerz implements the PaymentGateway interface against the
// SSLCommerz HTTP API: a form-encoded session-initiation call and a
// validation lookup. The adapter never retries; redelivery and manual
// reconciliation are the gateway's and the operator's responsibility.
package sslcommerz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

// Config holds the store credentials and callback targets for the gateway.
type Config struct {
	StoreID       string
	StorePass     string
	PaymentAPI    string
	ValidationAPI string
	Currency      string
	Timeout       time.Duration

	// Backend URLs the gateway redirects the browser back to. Each is
	// parameterized with the transaction identifier, the amount, and a
	// literal outcome tag.
	SuccessURL string
	FailURL    string
	CancelURL  string

	// City and Country fill the payer fields the student record doesn't carry.
	City    string
	Country string
}

// Adapter implements domain.PaymentGateway using the SSLCommerz API.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// NewAdapter creates a new SSLCommerz adapter.
func NewAdapter(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// initResponse is the subset of the session-initiation response we consume.
type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitSession opens a payment session and returns the gateway page URL the
// browser must be redirected to.
func (a *Adapter) InitSession(ctx context.Context, payer domain.PayerInfo, amount float64, transactionID string) (string, error) {
	form := url.Values{}
	form.Set("store_id", a.cfg.StoreID)
	form.Set("store_passwd", a.cfg.StorePass)
	form.Set("total_amount", fmt.Sprintf("%.2f", amount))
	form.Set("currency", a.cfg.Currency)
	form.Set("tran_id", transactionID)
	form.Set("success_url", a.callbackURL(a.cfg.SuccessURL, transactionID, amount, "success"))
	form.Set("fail_url", a.callbackURL(a.cfg.FailURL, transactionID, amount, "fail"))
	form.Set("cancel_url", a.callbackURL(a.cfg.CancelURL, transactionID, amount, "cancel"))
	form.Set("shipping_method", "N/A")
	form.Set("product_name", "Course")
	form.Set("product_category", "E-Learning")
	form.Set("product_profile", "general")
	form.Set("cus_name", payer.Name)
	form.Set("cus_email", payer.Email)
	form.Set("cus_add1", payer.Address)
	form.Set("cus_city", a.cfg.City)
	form.Set("cus_country", a.cfg.Country)
	form.Set("cus_phone", payer.Phone)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.PaymentAPI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: gateway returned status %d: %s",
			domain.ErrGateway, resp.StatusCode, string(body))
	}

	var initResp initResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGateway, err)
	}
	if initResp.Status == "FAILED" || initResp.GatewayPageURL == "" {
		reason := initResp.FailedReason
		if reason == "" {
			reason = "no gateway page URL in response"
		}
		return "", fmt.Errorf("%w: %s", domain.ErrGateway, reason)
	}

	return initResp.GatewayPageURL, nil
}

// Validate fetches the gateway's authoritative record for a transaction by
// its validation id. The body is returned verbatim; the caller stores it
// for audit.
func (a *Adapter) Validate(ctx context.Context, validationID string) ([]byte, error) {
	q := url.Values{}
	q.Set("val_id", validationID)
	q.Set("store_id", a.cfg.StoreID)
	q.Set("store_passwd", a.cfg.StorePass)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.ValidationAPI+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: validation returned status %d: %s",
			domain.ErrGateway, resp.StatusCode, string(body))
	}

	return body, nil
}

func (a *Adapter) callbackURL(base, transactionID string, amount float64, status string) string {
	return fmt.Sprintf("%s?transactionId=%s&amount=%.2f&status=%s",
		base, url.QueryEscape(transactionID), amount, status)
}

var _ domain.PaymentGateway = (*Adapter)(nil)
