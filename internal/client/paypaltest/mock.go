// Package paypaltest serves an in-memory PayPal REST and NVP API for tests.
package paypaltest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type MockOrder struct {
	ID          string
	ReferenceID string
	Intent      string
	Status      string
	Currency    string
	Amount      string
	CustomID    string
	PayerID     string
	PayerEmail  string
}

type MockSubscription struct {
	ID        string
	PlanID    string
	CustomID  string
	Status    string
	StartTime string
}

type MockNVPProfile struct {
	ID          string
	Status      string
	Amount      string
	StartDate   string
	TotalCycles string
}

// MockPayPal is a PayPal API double. Fail* switches make the matching
// endpoints answer 500 (REST) or ACK=Failure (NVP).
type MockPayPal struct {
	Server *httptest.Server
	mu     sync.Mutex
	seq    int

	Orders        map[string]*MockOrder
	Plans         map[string]string // plan id -> product id
	Subscriptions map[string]*MockSubscription
	NVPProfiles   map[string]*MockNVPProfile

	FailOrderCreate   bool
	FailCapture       bool
	FailSubscriptions bool
	FailNVP           bool
	CaptureStatus     string // COMPLETED when empty
	WebhookStatus     string // SUCCESS when empty

	OrderAttempts        int
	OrderPatches         int
	CaptureAttempts      int
	ProductCreates       int
	PlanCreates          int
	SubscriptionAttempts int
	NVPCalls             []url.Values
}

func NewMockPayPal() *MockPayPal {
	m := &MockPayPal{
		Orders:        make(map[string]*MockOrder),
		Plans:         make(map[string]string),
		Subscriptions: make(map[string]*MockSubscription),
		NVPProfiles:   make(map[string]*MockNVPProfile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", m.handleToken)
	mux.HandleFunc("POST /v2/checkout/orders", m.handleCreateOrder)
	mux.HandleFunc("GET /v2/checkout/orders/{id}", m.handleGetOrder)
	mux.HandleFunc("PATCH /v2/checkout/orders/{id}", m.handlePatchOrder)
	mux.HandleFunc("POST /v2/checkout/orders/{id}/{action}", m.handleCompleteOrder)
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", m.handleVerifyWebhook)
	mux.HandleFunc("POST /v1/catalogs/products", m.handleCreateProduct)
	mux.HandleFunc("POST /v1/billing/plans", m.handleCreatePlan)
	mux.HandleFunc("POST /v1/billing/subscriptions", m.handleCreateSubscription)
	mux.HandleFunc("GET /v1/billing/subscriptions/{id}", m.handleGetSubscription)
	mux.HandleFunc("POST /v1/billing/subscriptions/{id}/{action}", m.handleSubscriptionAction)
	mux.HandleFunc("POST /nvp", m.handleNVP)

	m.Server = httptest.NewServer(mux)
	return m
}

func (m *MockPayPal) Close() {
	m.Server.Close()
}

func (m *MockPayPal) URL() string {
	return m.Server.URL
}

func (m *MockPayPal) NVPEndpoint() string {
	return m.Server.URL + "/nvp"
}

// Approve simulates the buyer approving an order in the PayPal popup.
func (m *MockPayPal) Approve(orderID, payerID, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order, ok := m.Orders[orderID]; ok {
		order.Status = "APPROVED"
		order.PayerID = payerID
		order.PayerEmail = email
	}
}

func (m *MockPayPal) Order(orderID string) (MockOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.Orders[orderID]
	if !ok {
		return MockOrder{}, false
	}
	return *order, true
}

func (m *MockPayPal) SetFailure(orderCreate, capture, subscriptions, nvp bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailOrderCreate = orderCreate
	m.FailCapture = capture
	m.FailSubscriptions = subscriptions
	m.FailNVP = nvp
}

// Calls returns how many NVP calls used method.
func (m *MockPayPal) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, v := range m.NVPCalls {
		if v.Get("METHOD") == method {
			n++
		}
	}
	return n
}

func (m *MockPayPal) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%06d", prefix, m.seq)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status int, name, issue string) {
	writeJSON(w, status, map[string]interface{}{
		"name":     name,
		"message":  name,
		"debug_id": "mock-debug",
		"details":  []map[string]string{{"issue": issue}},
	})
}

func (m *MockPayPal) handleToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": fmt.Sprintf("mock-token-%d", time.Now().UnixNano()),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (m *MockPayPal) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OrderAttempts++
	if m.FailOrderCreate {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}

	var req struct {
		Intent        string `json:"intent"`
		PurchaseUnits []struct {
			ReferenceID string     `json:"reference_id"`
			CustomID    string     `json:"custom_id"`
			Amount      mockAmount `json:"amount"`
			Items       []mockItem `json:"items"`
		} `json:"purchase_units"`
		PaymentSource map[string]interface{} `json:"payment_source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PurchaseUnits) == 0 {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "MISSING_REQUIRED_PARAMETER")
		return
	}
	unit := req.PurchaseUnits[0]
	if issue := unit.Amount.mismatch(unit.Items); issue != "" {
		writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", issue)
		return
	}

	order := &MockOrder{
		ID:          m.nextID("ORDER"),
		ReferenceID: unit.ReferenceID,
		Intent:      req.Intent,
		Status:      "CREATED",
		Currency:    unit.Amount.CurrencyCode,
		Amount:      unit.Amount.Value,
		CustomID:    unit.CustomID,
	}
	if order.ReferenceID == "" {
		order.ReferenceID = "default"
	}
	rel := "approve"
	if len(req.PaymentSource) > 0 {
		order.Status = "PAYER_ACTION_REQUIRED"
		rel = "payer-action"
	}
	m.Orders[order.ID] = order

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     order.ID,
		"status": order.Status,
		"links": []map[string]string{
			{"rel": "self", "href": m.Server.URL + "/v2/checkout/orders/" + order.ID},
			{"rel": rel, "href": "https://www.sandbox.paypal.com/checkoutnow?token=" + order.ID},
		},
	})
}

type mockMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func (v *mockMoney) amount() decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(v.Value)
	return d
}

type mockItem struct {
	Quantity   string    `json:"quantity"`
	UnitAmount mockMoney `json:"unit_amount"`
}

type mockAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
	Breakdown    *struct {
		ItemTotal *mockMoney `json:"item_total"`
		Shipping  *mockMoney `json:"shipping"`
		TaxTotal  *mockMoney `json:"tax_total"`
		Discount  *mockMoney `json:"discount"`
	} `json:"breakdown"`
}

// mismatch applies PayPal's amount validation and returns the issue it
// would report, or "".
func (a *mockAmount) mismatch(items []mockItem) string {
	if a.Breakdown == nil {
		return ""
	}
	b := a.Breakdown
	sum := b.ItemTotal.amount().Add(b.Shipping.amount()).Add(b.TaxTotal.amount()).Sub(b.Discount.amount())
	value, _ := decimal.NewFromString(a.Value)
	if !sum.Equal(value) {
		return "AMOUNT_MISMATCH"
	}
	if len(items) == 0 {
		return ""
	}
	itemTotal := decimal.Zero
	for _, item := range items {
		qty, _ := decimal.NewFromString(item.Quantity)
		itemTotal = itemTotal.Add(item.UnitAmount.amount().Mul(qty))
	}
	if !itemTotal.Equal(b.ItemTotal.amount()) {
		return "ITEM_TOTAL_MISMATCH"
	}
	return ""
}

func (m *MockPayPal) handlePatchOrder(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.Orders[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}
	if order.Status == "COMPLETED" {
		writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "ORDER_ALREADY_COMPLETED")
		return
	}

	var ops []struct {
		Op    string     `json:"op"`
		Path  string     `json:"path"`
		Value mockAmount `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil || len(ops) == 0 {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "MALFORMED_REQUEST_JSON")
		return
	}
	for _, op := range ops {
		if op.Op != "replace" || op.Path != "/purchase_units/@reference_id=='"+order.ReferenceID+"'/amount" {
			writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "INVALID_PATCH_PATH")
			return
		}
		if issue := op.Value.mismatch(nil); issue != "" {
			writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", issue)
			return
		}
	}

	m.OrderPatches++
	last := ops[len(ops)-1].Value
	order.Currency = last.CurrencyCode
	order.Amount = last.Value
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockPayPal) orderBody(order *MockOrder) map[string]interface{} {
	return map[string]interface{}{
		"id":     order.ID,
		"status": order.Status,
		"payer": map[string]interface{}{
			"payer_id":      order.PayerID,
			"email_address": order.PayerEmail,
			"name":          map[string]string{"given_name": "Test", "surname": "Buyer"},
		},
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": order.CustomID,
				"amount":    map[string]string{"currency_code": order.Currency, "value": order.Amount},
			},
		},
	}
}

func (m *MockPayPal) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.Orders[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}
	writeJSON(w, http.StatusOK, m.orderBody(order))
}

func (m *MockPayPal) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CaptureAttempts++
	if m.FailCapture {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}

	order, ok := m.Orders[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}
	if order.Status != "APPROVED" {
		writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "ORDER_NOT_APPROVED")
		return
	}

	action := r.PathValue("action")
	payment := map[string]interface{}{
		"amount": map[string]string{"currency_code": order.Currency, "value": order.Amount},
	}
	payments := map[string]interface{}{}
	switch action {
	case "capture":
		status := m.CaptureStatus
		if status == "" {
			status = "COMPLETED"
		}
		payment["id"] = m.nextID("CAPTURE")
		payment["status"] = status
		if status == "PENDING" {
			payment["status_details"] = map[string]string{"reason": "PENDING_REVIEW"}
		}
		payments["captures"] = []interface{}{payment}
		order.Status = "COMPLETED"
	case "authorize":
		payment["id"] = m.nextID("AUTH")
		payment["status"] = "CREATED"
		payments["authorizations"] = []interface{}{payment}
		order.Status = "COMPLETED"
	default:
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}

	body := m.orderBody(order)
	body["purchase_units"].([]map[string]interface{})[0]["payments"] = payments
	writeJSON(w, http.StatusCreated, body)
}

func (m *MockPayPal) handleVerifyWebhook(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	status := m.WebhookStatus
	m.mu.Unlock()

	if status == "" {
		status = "SUCCESS"
	}
	writeJSON(w, http.StatusOK, map[string]string{"verification_status": status})
}

func (m *MockPayPal) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSubscriptions {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}
	m.ProductCreates++
	writeJSON(w, http.StatusCreated, map[string]string{"id": m.nextID("PROD")})
}

func (m *MockPayPal) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSubscriptions {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	m.PlanCreates++
	id := m.nextID("P")
	m.Plans[id] = req.ProductID
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "ACTIVE"})
}

func (m *MockPayPal) subscriptionBody(sub *MockSubscription) map[string]interface{} {
	body := map[string]interface{}{
		"id":        sub.ID,
		"status":    sub.Status,
		"plan_id":   sub.PlanID,
		"custom_id": sub.CustomID,
		"links": []map[string]string{
			{"rel": "approve", "href": "https://www.sandbox.paypal.com/webapps/billing/subscriptions?ba_token=" + sub.ID},
		},
	}
	if sub.Status == "ACTIVE" {
		body["billing_info"] = map[string]interface{}{
			"next_billing_time":   "2030-01-01T10:00:00Z",
			"outstanding_balance": map[string]string{"currency_code": "USD", "value": "0.00"},
			"cycle_executions": []map[string]interface{}{
				{"tenure_type": "REGULAR", "cycles_completed": 1, "cycles_remaining": 11},
			},
		}
	}
	return body
}

func (m *MockPayPal) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SubscriptionAttempts++
	if m.FailSubscriptions {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}

	var req struct {
		PlanID    string `json:"plan_id"`
		CustomID  string `json:"custom_id"`
		StartTime string `json:"start_time"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if _, ok := m.Plans[req.PlanID]; !ok {
		writeAPIError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "INVALID_PLAN")
		return
	}

	sub := &MockSubscription{
		ID:        m.nextID("I"),
		PlanID:    req.PlanID,
		CustomID:  req.CustomID,
		Status:    "APPROVAL_PENDING",
		StartTime: req.StartTime,
	}
	m.Subscriptions[sub.ID] = sub
	writeJSON(w, http.StatusCreated, m.subscriptionBody(sub))
}

func (m *MockPayPal) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSubscriptions {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}
	sub, ok := m.Subscriptions[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}
	writeJSON(w, http.StatusOK, m.subscriptionBody(sub))
}

func (m *MockPayPal) handleSubscriptionAction(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSubscriptions {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "INTERNAL_SERVICE_ERROR")
		return
	}
	sub, ok := m.Subscriptions[r.PathValue("id")]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}

	switch r.PathValue("action") {
	case "suspend":
		sub.Status = "SUSPENDED"
	case "activate":
		sub.Status = "ACTIVE"
	case "cancel":
		sub.Status = "CANCELLED"
	default:
		writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "INVALID_RESOURCE_ID")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSubscriptionStatus forces a REST subscription state, e.g. ACTIVE after
// the buyer approved it.
func (m *MockPayPal) SetSubscriptionStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.Subscriptions[id]; ok {
		sub.Status = status
	}
}

func (m *MockPayPal) handleNVP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.NVPCalls = append(m.NVPCalls, r.PostForm)

	out := url.Values{}
	out.Set("TIMESTAMP", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	out.Set("CORRELATIONID", fmt.Sprintf("mock%d", len(m.NVPCalls)))
	out.Set("VERSION", r.PostForm.Get("VERSION"))

	fail := func(code, short string) {
		out.Set("ACK", "Failure")
		out.Set("L_ERRORCODE0", code)
		out.Set("L_SHORTMESSAGE0", short)
		out.Set("L_LONGMESSAGE0", short)
		out.Set("L_SEVERITYCODE0", "Error")
		w.Write([]byte(out.Encode()))
	}

	if m.FailNVP {
		fail("10001", "Internal Error")
		return
	}
	if r.PostForm.Get("USER") == "" || r.PostForm.Get("SIGNATURE") == "" {
		fail("10002", "Security error")
		return
	}

	switch r.PostForm.Get("METHOD") {
	case "CreateRecurringPaymentsProfile":
		p := &MockNVPProfile{
			ID:          m.nextID("I-NVP"),
			Status:      "Active",
			Amount:      r.PostForm.Get("AMT"),
			StartDate:   r.PostForm.Get("PROFILESTARTDATE"),
			TotalCycles: r.PostForm.Get("TOTALBILLINGCYCLES"),
		}
		m.NVPProfiles[p.ID] = p
		out.Set("PROFILEID", p.ID)
		out.Set("PROFILESTATUS", "ActiveProfile")
	case "GetRecurringPaymentsProfileDetails":
		p, ok := m.NVPProfiles[r.PostForm.Get("PROFILEID")]
		if !ok {
			fail("11552", "Invalid profile ID")
			return
		}
		out.Set("PROFILEID", p.ID)
		out.Set("STATUS", p.Status)
		out.Set("NEXTBILLINGDATE", p.StartDate)
		out.Set("NUMCYCLESCOMPLETED", "0")
		out.Set("NUMCYCLESREMAINING", p.TotalCycles)
		out.Set("OUTSTANDINGBALANCE", "0.00")
		out.Set("AMT", p.Amount)
	case "ManageRecurringPaymentsProfileStatus":
		p, ok := m.NVPProfiles[r.PostForm.Get("PROFILEID")]
		if !ok {
			fail("11552", "Invalid profile ID")
			return
		}
		switch r.PostForm.Get("ACTION") {
		case "Cancel":
			p.Status = "Cancelled"
		case "Suspend":
			p.Status = "Suspended"
		case "Reactivate":
			p.Status = "Active"
		}
		out.Set("PROFILEID", p.ID)
	default:
		fail("81002", "Unspecified Method")
		return
	}

	out.Set("ACK", "Success")
	w.Write([]byte(out.Encode()))
}
