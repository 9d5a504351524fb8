package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type CatalogProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"` // PHYSICAL, DIGITAL, SERVICE
}

type PlanRequest struct {
	ProductID     string
	Name          string
	IntervalUnit  string // DAY, WEEK, MONTH, YEAR
	IntervalCount int
	TotalCycles   int // 0 = infinite
	Price         Money
	TaxPercentage string // "" = no taxes block
}

type SubscriptionRequest struct {
	PlanID     string
	StartTime  *time.Time
	CustomID   string
	PayerEmail string
	GivenName  string
	Surname    string
	ReturnURL  string
	CancelURL  string
}

type SubscriptionResult struct {
	ID                 string
	Status             string
	PlanID             string
	CustomID           string
	ApproveURL         string
	NextBillingTime    *time.Time
	LastPaymentAmount  *Money
	LastPaymentTime    *time.Time
	OutstandingBalance *Money
	CyclesCompleted    int
	CyclesRemaining    int
}

type paypalSubscriptionResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PlanID      string       `json:"plan_id"`
	CustomID    string       `json:"custom_id"`
	Links       []PaypalLink `json:"links"`
	BillingInfo *struct {
		NextBillingTime    string `json:"next_billing_time"`
		OutstandingBalance *Money `json:"outstanding_balance"`
		LastPayment        *struct {
			Amount Money  `json:"amount"`
			Time   string `json:"time"`
		} `json:"last_payment"`
		CycleExecutions []struct {
			TenureType      string `json:"tenure_type"`
			CyclesCompleted int    `json:"cycles_completed"`
			CyclesRemaining int    `json:"cycles_remaining"`
		} `json:"cycle_executions"`
	} `json:"billing_info"`
}

func (c *paypalClientImpl) CreateProduct(ctx context.Context, req *CatalogProductRequest) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/catalogs/products", req, &result); err != nil {
		return "", fmt.Errorf("create catalog product: %w", err)
	}
	return result.ID, nil
}

func (c *paypalClientImpl) CreatePlan(ctx context.Context, req *PlanRequest) (string, error) {
	payload := map[string]interface{}{
		"product_id": req.ProductID,
		"name":       req.Name,
		"status":     "ACTIVE",
		"billing_cycles": []map[string]interface{}{
			{
				"frequency": map[string]interface{}{
					"interval_unit":  req.IntervalUnit,
					"interval_count": req.IntervalCount,
				},
				"tenure_type":  "REGULAR",
				"sequence":     1,
				"total_cycles": req.TotalCycles,
				"pricing_scheme": map[string]interface{}{
					"fixed_price": req.Price,
				},
			},
		},
		"payment_preferences": map[string]interface{}{
			"auto_bill_outstanding":     true,
			"setup_fee_failure_action":  "CONTINUE",
			"payment_failure_threshold": 3,
		},
	}
	if req.TaxPercentage != "" {
		payload["taxes"] = map[string]interface{}{
			"percentage": req.TaxPercentage,
			"inclusive":  false,
		}
	}

	var result struct {
		ID string `json:"id"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/billing/plans", payload, &result); err != nil {
		return "", fmt.Errorf("create billing plan: %w", err)
	}
	return result.ID, nil
}

func (c *paypalClientImpl) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*SubscriptionResult, error) {
	payload := map[string]interface{}{
		"plan_id":   req.PlanID,
		"custom_id": req.CustomID,
		"application_context": map[string]string{
			"return_url":  req.ReturnURL,
			"cancel_url":  req.CancelURL,
			"user_action": "SUBSCRIBE_NOW",
		},
	}
	if req.StartTime != nil {
		payload["start_time"] = req.StartTime.UTC().Format(time.RFC3339)
	}
	if req.PayerEmail != "" {
		payload["subscriber"] = map[string]interface{}{
			"email_address": req.PayerEmail,
			"name": map[string]string{
				"given_name": req.GivenName,
				"surname":    req.Surname,
			},
		}
	}

	var result paypalSubscriptionResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &result); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return toSubscriptionResult(&result), nil
}

func (c *paypalClientImpl) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionResult, error) {
	var result paypalSubscriptionResponse
	path := "/v1/billing/subscriptions/" + url.PathEscape(subscriptionID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return toSubscriptionResult(&result), nil
}

func (c *paypalClientImpl) SuspendSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "suspend", reason)
}

func (c *paypalClientImpl) ActivateSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "activate", reason)
}

func (c *paypalClientImpl) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	return c.subscriptionAction(ctx, subscriptionID, "cancel", reason)
}

func (c *paypalClientImpl) subscriptionAction(ctx context.Context, subscriptionID, action, reason string) error {
	if reason == "" {
		reason = "Requested by store"
	}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s/%s", url.PathEscape(subscriptionID), action)
	if _, err := c.do(ctx, http.MethodPost, path, map[string]string{"reason": reason}, nil); err != nil {
		return fmt.Errorf("%s subscription %s: %w", action, subscriptionID, err)
	}
	return nil
}

func toSubscriptionResult(resp *paypalSubscriptionResponse) *SubscriptionResult {
	result := &SubscriptionResult{
		ID:         resp.ID,
		Status:     resp.Status,
		PlanID:     resp.PlanID,
		CustomID:   resp.CustomID,
		ApproveURL: _extractApproveURL(resp.Links),
	}
	if info := resp.BillingInfo; info != nil {
		result.NextBillingTime = parsePaypalTime(info.NextBillingTime)
		result.OutstandingBalance = info.OutstandingBalance
		if info.LastPayment != nil {
			amount := info.LastPayment.Amount
			result.LastPaymentAmount = &amount
			result.LastPaymentTime = parsePaypalTime(info.LastPayment.Time)
		}
		for _, exec := range info.CycleExecutions {
			if exec.TenureType == "REGULAR" {
				result.CyclesCompleted = exec.CyclesCompleted
				result.CyclesRemaining = exec.CyclesRemaining
			}
		}
	}
	return result
}

func parsePaypalTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}
