package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"storefront-payments/internal/config"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type PaypalClient interface {
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResult, error)
	PatchOrderAmount(ctx context.Context, orderID, referenceID string, amount *PurchaseAmount) error
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
	AuthorizeOrder(ctx context.Context, orderID string) (*CaptureResult, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error

	CreateProduct(ctx context.Context, req *CatalogProductRequest) (string, error)
	CreatePlan(ctx context.Context, req *PlanRequest) (string, error)
	CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*SubscriptionResult, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResult, error)
	SuspendSubscription(ctx context.Context, subscriptionID, reason string) error
	ActivateSubscription(ctx context.Context, subscriptionID, reason string) error
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string

	tokenMu        sync.Mutex
	cachedToken    string
	tokenExpiresAt time.Time
}

// PaypalAPIError is a non-2xx answer from the REST API.
type PaypalAPIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
	Details    []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *PaypalAPIError) Error() string {
	msg := fmt.Sprintf("paypal error %d", e.StatusCode)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += " (" + e.Details[0].Issue + ")"
	}
	if e.DebugID != "" {
		msg += " debug_id=" + e.DebugID
	}
	return msg
}

// IssueIs reports whether the first detail issue matches.
func (e *PaypalAPIError) IssueIs(issue string) bool {
	return len(e.Details) > 0 && e.Details[0].Issue == issue
}

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type OrderItem struct {
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Quantity   string `json:"quantity"`
	UnitAmount Money  `json:"unit_amount"`
	Tax        *Money `json:"tax,omitempty"`
	Category   string `json:"category,omitempty"` // PHYSICAL_GOODS, DIGITAL_GOODS
}

type AmountBreakdown struct {
	ItemTotal *Money `json:"item_total,omitempty"`
	Shipping  *Money `json:"shipping,omitempty"`
	TaxTotal  *Money `json:"tax_total,omitempty"`
	Discount  *Money `json:"discount,omitempty"`
}

type PurchaseAmount struct {
	CurrencyCode string           `json:"currency_code"`
	Value        string           `json:"value"`
	Breakdown    *AmountBreakdown `json:"breakdown,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string         `json:"reference_id,omitempty"`
	CustomID    string         `json:"custom_id,omitempty"`
	InvoiceID   string         `json:"invoice_id,omitempty"`
	Amount      PurchaseAmount `json:"amount"`
	Items       []OrderItem    `json:"items,omitempty"`
}

type OrderRequest struct {
	Intent        string // CAPTURE, AUTHORIZE
	PurchaseUnits []PurchaseUnit
	// FundingSource selects the payment_source experience context for
	// redirect flows (paypal, venmo). Card wallets leave it empty.
	FundingSource string
	ReturnURL     string
	CancelURL     string
}

type OrderResult struct {
	ID         string
	Status     string
	ApproveURL string
	PayerID    string
	PayerEmail string
	PayerName  string
	Amount     Money
	CustomID   string
}

type CaptureResult struct {
	OrderID       string
	OrderStatus   string
	TransactionID string
	Status        string // COMPLETED, PENDING, DECLINED, CREATED (authorization)
	StatusReason  string
	Amount        Money
	PayerID       string
	PayerEmail    string
	Raw           string
}

type paypalPayment struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        Money  `json:"amount"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
}

type paypalOrderResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []PaypalLink `json:"links"`
	Payer  struct {
		PayerID string `json:"payer_id"`
		Email   string `json:"email_address"`
		Name    struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Amount   Money  `json:"amount"`
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures       []paypalPayment `json:"captures"`
			Authorizations []paypalPayment `json:"authorizations"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.cachedToken != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.cachedToken, nil
	}

	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeAPIError(resp)
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	// refresh a minute early
	ttl := time.Duration(res.ExpiresIn)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	c.cachedToken = res.AccessToken
	c.tokenExpiresAt = time.Now().Add(ttl)

	return c.cachedToken, nil
}

// do sends an authenticated JSON request and decodes a 2xx body into out.
func (c *paypalClientImpl) do(ctx context.Context, method, path string, payload, out interface{}) ([]byte, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read paypal response: %w", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode paypal response: %w", err)
		}
	}

	return raw, nil
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &PaypalAPIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(b, apiErr); err != nil || (apiErr.Name == "" && apiErr.Message == "") {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}

func (c *paypalClientImpl) CreateOrder(ctx context.Context, orderReq *OrderRequest) (*OrderResult, error) {
	intent := orderReq.Intent
	if intent == "" {
		intent = "CAPTURE"
	}

	payload := map[string]interface{}{
		"intent":         intent,
		"purchase_units": orderReq.PurchaseUnits,
	}
	if orderReq.FundingSource != "" {
		payload["payment_source"] = map[string]interface{}{
			orderReq.FundingSource: map[string]interface{}{
				"experience_context": map[string]string{
					"return_url":          orderReq.ReturnURL,
					"cancel_url":          orderReq.CancelURL,
					"user_action":         "CONTINUE",
					"shipping_preference": "SET_PROVIDED_ADDRESS",
				},
			},
		}
	}

	var result paypalOrderResponse
	if _, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &result); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return toOrderResult(&result), nil
}

func (c *paypalClientImpl) GetOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	var result paypalOrderResponse
	if _, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, &result); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	return toOrderResult(&result), nil
}

// PatchOrderAmount replaces the amount of one purchase unit. An empty
// referenceID is PayPal's "default" unit.
func (c *paypalClientImpl) PatchOrderAmount(ctx context.Context, orderID, referenceID string, amount *PurchaseAmount) error {
	if referenceID == "" {
		referenceID = "default"
	}
	patch := []map[string]interface{}{{
		"op":    "replace",
		"path":  fmt.Sprintf("/purchase_units/@reference_id=='%s'/amount", referenceID),
		"value": amount,
	}}

	if _, err := c.do(ctx, http.MethodPatch, "/v2/checkout/orders/"+url.PathEscape(orderID), patch, nil); err != nil {
		return fmt.Errorf("patch order %s: %w", orderID, err)
	}
	return nil
}

func (c *paypalClientImpl) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	return c.completeOrder(ctx, orderID, "capture")
}

func (c *paypalClientImpl) AuthorizeOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	return c.completeOrder(ctx, orderID, "authorize")
}

func (c *paypalClientImpl) completeOrder(ctx context.Context, orderID, action string) (*CaptureResult, error) {
	path := fmt.Sprintf("/v2/checkout/orders/%s/%s", url.PathEscape(orderID), action)

	var result paypalOrderResponse
	raw, err := c.do(ctx, http.MethodPost, path, map[string]interface{}{}, &result)
	if err != nil {
		return nil, fmt.Errorf("paypal %s order: %w", action, err)
	}

	capture := &CaptureResult{
		OrderID:     result.ID,
		OrderStatus: result.Status,
		PayerID:     result.Payer.PayerID,
		PayerEmail:  result.Payer.Email,
		Raw:         string(raw),
	}
	if len(result.PurchaseUnits) > 0 {
		payments := result.PurchaseUnits[0].Payments.Captures
		if action == "authorize" {
			payments = result.PurchaseUnits[0].Payments.Authorizations
		}
		if len(payments) > 0 {
			capture.TransactionID = payments[0].ID
			capture.Status = payments[0].Status
			capture.StatusReason = payments[0].StatusDetails.Reason
			capture.Amount = payments[0].Amount
		}
	}
	if capture.TransactionID == "" {
		return nil, fmt.Errorf("paypal %s order %s: no payment in response", action, orderID)
	}

	return capture, nil
}

func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if c.webhookID == "" {
		return fmt.Errorf("paypal webhook id not configured")
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &result); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("webhook signature verification status %q", result.VerificationStatus)
	}

	return nil
}

func toOrderResult(result *paypalOrderResponse) *OrderResult {
	order := &OrderResult{
		ID:         result.ID,
		Status:     result.Status,
		ApproveURL: _extractApproveURL(result.Links),
		PayerID:    result.Payer.PayerID,
		PayerEmail: result.Payer.Email,
		PayerName:  strings.TrimSpace(result.Payer.Name.GivenName + " " + result.Payer.Name.Surname),
	}
	if len(result.PurchaseUnits) > 0 {
		order.Amount = result.PurchaseUnits[0].Amount
		order.CustomID = result.PurchaseUnits[0].CustomID
	}
	return order
}

func _extractApproveURL(links []PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}
