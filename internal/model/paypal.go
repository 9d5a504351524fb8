package model

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type RelatedIDs struct {
	OrderID string `json:"order_id"`
}

type SupplementaryData struct {
	RelatedIDs RelatedIDs `json:"related_ids"`
}

type BillingInfo struct {
	NextBillingTime string `json:"next_billing_time"`
}

type ResourceLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type PaypalResource struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Amount            Amount            `json:"amount"`
	CustomID          string            `json:"custom_id"`
	SupplementaryData SupplementaryData `json:"supplementary_data"`
	Links             []ResourceLink    `json:"links"`

	// subscription-specific
	PlanID      string      `json:"plan_id"`
	BillingInfo BillingInfo `json:"billing_info"`
}

type PayPalWebhookEvent struct {
	ID           string         `json:"id"`
	EventType    string         `json:"event_type"`
	ResourceType string         `json:"resource_type"`
	CreateTime   string         `json:"create_time"`
	Resource     PaypalResource `json:"resource"`
}
