package profile

import (
	"context"
	"fmt"
	"net/url"
	"storefront-payments/internal/client"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const nvpTimeLayout = "2006-01-02T15:04:05Z"

type nvpGatewayImpl struct {
	nvpClient client.NVPClient
}

// NewNVPGateway serves profiles through the legacy recurring payments calls.
func NewNVPGateway(nvpClient client.NVPClient) Gateway {
	return &nvpGatewayImpl{
		nvpClient: nvpClient,
	}
}

func (g *nvpGatewayImpl) Name() string {
	return GatewayNVP
}

func (g *nvpGatewayImpl) Create(ctx context.Context, req *CreateRequest) (*Profile, error) {
	schedule := req.Schedule
	if schedule == nil {
		return nil, fmt.Errorf("create recurring profile: missing schedule")
	}

	values := url.Values{}
	if req.Token != "" {
		values.Set("TOKEN", req.Token)
	}
	if req.PayerID != "" {
		values.Set("PAYERID", req.PayerID)
	}
	values.Set("PROFILESTARTDATE", schedule.StartDate.UTC().Format(nvpTimeLayout))
	values.Set("DESC", truncate(schedule.Description(), 127))
	values.Set("BILLINGPERIOD", string(schedule.Period))
	values.Set("BILLINGFREQUENCY", strconv.Itoa(schedule.Frequency))
	values.Set("TOTALBILLINGCYCLES", strconv.Itoa(schedule.TotalCycles))
	values.Set("AMT", schedule.Amount.StringFixed(2))
	values.Set("TAXAMT", schedule.TaxAmount.StringFixed(2))
	values.Set("CURRENCYCODE", schedule.Currency)
	values.Set("MAXFAILEDPAYMENTS", "3")
	values.Set("AUTOBILLOUTAMT", "AddToNextBilling")
	if req.CustomID != "" {
		values.Set("PROFILEREFERENCE", req.CustomID)
	}
	if req.PayerEmail != "" {
		values.Set("EMAIL", req.PayerEmail)
	}
	if name := req.GivenName + " " + req.Surname; len(name) > 1 {
		values.Set("SUBSCRIBERNAME", truncate(name, 32))
	}

	resp, err := g.nvpClient.Do(ctx, "CreateRecurringPaymentsProfile", values)
	if err != nil {
		return nil, fmt.Errorf("create recurring profile: %w", err)
	}

	profileID := resp.Get("PROFILEID")
	if profileID == "" {
		return nil, fmt.Errorf("create recurring profile: no PROFILEID in response (correlation %s)", resp.CorrelationID)
	}

	rawStatus := resp.Get("PROFILESTATUS")
	next := schedule.StartDate
	return &Profile{
		ProfileID:       profileID,
		Gateway:         GatewayNVP,
		Status:          NormalizeStatus(rawStatus),
		RawStatus:       rawStatus,
		NextBillingDate: &next,
		CyclesRemaining: schedule.TotalCycles,
	}, nil
}

func (g *nvpGatewayImpl) Get(ctx context.Context, profileID string) (*Profile, error) {
	values := url.Values{}
	values.Set("PROFILEID", profileID)

	resp, err := g.nvpClient.Do(ctx, "GetRecurringPaymentsProfileDetails", values)
	if err != nil {
		return nil, fmt.Errorf("get recurring profile %s: %w", profileID, err)
	}

	rawStatus := resp.Get("STATUS")
	p := &Profile{
		ProfileID:       profileID,
		Gateway:         GatewayNVP,
		Status:          NormalizeStatus(rawStatus),
		RawStatus:       rawStatus,
		NextBillingDate: parseNVPTime(resp.Get("NEXTBILLINGDATE")),
		CyclesCompleted: atoi(resp.Get("NUMCYCLESCOMPLETED")),
		CyclesRemaining: atoi(resp.Get("NUMCYCLESREMAINING")),
		LastPaymentDate: parseNVPTime(resp.Get("LASTPAYMENTDATE")),
	}
	if amount, err := decimal.NewFromString(resp.Get("LASTPAYMENTAMT")); err == nil {
		p.LastPaymentAmount = &amount
	}
	if balance, err := decimal.NewFromString(resp.Get("OUTSTANDINGBALANCE")); err == nil {
		p.OutstandingBalance = balance
	}
	return p, nil
}

func (g *nvpGatewayImpl) UpdateStatus(ctx context.Context, profileID string, action Action, note string) error {
	var nvpAction string
	switch action {
	case ActionCancel:
		nvpAction = "Cancel"
	case ActionSuspend:
		nvpAction = "Suspend"
	case ActionReactivate:
		nvpAction = "Reactivate"
	default:
		return fmt.Errorf("unsupported profile action %q", action)
	}

	values := url.Values{}
	values.Set("PROFILEID", profileID)
	values.Set("ACTION", nvpAction)
	if note != "" {
		values.Set("NOTE", note)
	}

	if _, err := g.nvpClient.Do(ctx, "ManageRecurringPaymentsProfileStatus", values); err != nil {
		return fmt.Errorf("%s recurring profile %s: %w", action, profileID, err)
	}
	return nil
}

func parseNVPTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(nvpTimeLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

// atoi yields 0 for blanks and for the uint64 max NVP reports on open ended
// profiles.
func atoi(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
