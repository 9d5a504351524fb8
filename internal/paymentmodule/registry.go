package paymentmodule

import (
	"context"
	"fmt"
	"sort"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
	"strings"

	"github.com/shopspring/decimal"
)

// ZoneChecker answers geo zone membership, see repository.CustomerRepository.
type ZoneChecker interface {
	InGeoZone(ctx context.Context, geoZoneID uint, countryCode string, zoneID uint) (bool, error)
}

// Credentials tells which gateways have API credentials configured.
type Credentials struct {
	PayPal    bool
	Braintree bool
}

type Registry struct {
	zones       ZoneChecker
	credentials Credentials
}

func NewRegistry(zones ZoneChecker, credentials Credentials) *Registry {
	return &Registry{
		zones:       zones,
		credentials: credentials,
	}
}

// Eligible decides whether def may take a payment of total in currency for a
// shopper billed at billing. reason explains a rejection.
func (r *Registry) Eligible(
	ctx context.Context,
	def Definition,
	settings configuration.Settings,
	total decimal.Decimal,
	currency string,
	billing *model.AddressBook,
) (ok bool, reason string, err error) {
	if !settings.Bool(def.Key(configuration.SuffixStatus)) {
		return false, "module disabled", nil
	}

	switch def.Gateway {
	case GatewayPayPal:
		if !r.credentials.PayPal {
			return false, "PayPal credentials missing", nil
		}
	case GatewayBraintree:
		if !r.credentials.Braintree {
			return false, "Braintree credentials missing", nil
		}
	}

	if def.Free() {
		if !total.IsZero() {
			return false, "order total is not zero", nil
		}
	} else if !total.IsPositive() {
		return false, "order total is zero", nil
	}

	if geoZone := settings.Int(def.Key(configuration.SuffixZone)); geoZone > 0 {
		if billing == nil {
			return false, "no billing address for zone check", nil
		}
		inZone, err := r.zones.InGeoZone(ctx, uint(geoZone), billing.CountryCode, billing.ZoneID)
		if err != nil {
			return false, "", fmt.Errorf("check zone %d: %w", geoZone, err)
		}
		if !inZone {
			return false, "billing address outside module zone", nil
		}
	}

	if minTotal := settings.Decimal(def.Key(configuration.SuffixMinOrderTotal)); minTotal.IsPositive() && total.LessThan(minTotal) {
		return false, "order total below module minimum", nil
	}
	if maxTotal := settings.Decimal(def.Key(configuration.SuffixMaxOrderTotal)); maxTotal.IsPositive() && total.GreaterThan(maxTotal) {
		return false, "order total above module maximum", nil
	}

	if currencies := settings.List(def.Key(configuration.SuffixCurrencies)); len(currencies) > 0 {
		accepted := false
		for _, c := range currencies {
			if strings.EqualFold(c, currency) {
				accepted = true
				break
			}
		}
		if !accepted {
			return false, "currency " + currency + " not accepted", nil
		}
	}

	return true, "", nil
}

// Available lists the eligible modules ordered by their sort order setting,
// then code.
func (r *Registry) Available(
	ctx context.Context,
	settings configuration.Settings,
	total decimal.Decimal,
	currency string,
	billing *model.AddressBook,
) ([]Definition, error) {
	var out []Definition
	for _, def := range definitions {
		ok, _, err := r.Eligible(ctx, def, settings, total, currency, billing)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, def)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		si := settings.Int(out[i].Key(configuration.SuffixSortOrder))
		sj := settings.Int(out[j].Key(configuration.SuffixSortOrder))
		if si != sj {
			return si < sj
		}
		return out[i].Code < out[j].Code
	})

	return out, nil
}
