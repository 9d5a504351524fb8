package installer

import (
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
)

// StorefrontVersionKey records the core settings version.
const StorefrontVersionKey = "STOREFRONT_CONFIGURATION_VERSION"

const (
	groupMyStore = 1
	groupModules = 6
	groupStock   = 9
	groupOPRC    = 31
)

type setting struct {
	key, value, title, description string
}

func rows(group int, settings ...setting) []*model.Configuration {
	out := make([]*model.Configuration, 0, len(settings))
	for i, s := range settings {
		out = append(out, &model.Configuration{
			ConfigurationTitle:       s.title,
			ConfigurationKey:         s.key,
			ConfigurationValue:       s.value,
			ConfigurationDescription: s.description,
			ConfigurationGroupID:     group,
			SortOrder:                i + 1,
		})
	}
	return out
}

func key(prefix, suffix string) string {
	return configuration.ModuleKey(prefix, suffix)
}

// Defaults is every plugin the service knows, in install order.
func Defaults() []*Plugin {
	return []*Plugin{Storefront(), PayPalR(), Braintree(), OPRC()}
}

func Storefront() *Plugin {
	return &Plugin{
		Name:       "storefront",
		VersionKey: StorefrontVersionKey,
		Prefixes: []string{
			configuration.DefaultCurrency,
			configuration.DefaultOrdersStatusID,
			"STOCK_",
			configuration.DisplayConditionsOnCheckout,
			"MODULE_SHIPPING_FLAT",
			configuration.PrefixFreeCharger,
		},
		Steps: []Step{
			{
				Version: "1.0.0",
				Insert: append(append(append(
					rows(groupMyStore,
						setting{configuration.DefaultCurrency, "USD", "Default Currency", "Currency orders are placed in."},
						setting{configuration.DefaultOrdersStatusID, "1", "Default Order Status", "Status given to new orders when the payment module sets none."},
						setting{configuration.DisplayConditionsOnCheckout, "false", "Confirm Terms and Conditions", "Require the shopper to accept the terms before placing an order."},
					),
					rows(groupStock,
						setting{configuration.StockCheck, "true", "Check Stock Level", "Check whether enough stock is available."},
						setting{configuration.StockLimited, "true", "Subtract Stock", "Subtract the ordered quantity from stock."},
						setting{configuration.StockAllowCheckout, "false", "Allow Checkout", "Allow checkout when an item is out of stock."},
					)...),
					rows(groupModules,
						setting{configuration.ShippingFlatCost, "5.00", "Flat Shipping Cost", "Cost for all orders using this method."},
						setting{configuration.ShippingFlatTitle, "Flat Rate", "Flat Shipping Title", "Shown to the shopper."},
					)...),
					rows(groupModules,
						setting{key(configuration.PrefixFreeCharger, configuration.SuffixStatus), "True", "Enable Free Charge Module", "Offered when the order total is zero."},
						setting{key(configuration.PrefixFreeCharger, configuration.SuffixOrderStatusID), "0", "Free Order Status", "0 uses the store default."},
						setting{key(configuration.PrefixFreeCharger, configuration.SuffixSortOrder), "0", "Sort order of display.", ""},
					)...),
			},
		},
	}
}

// paypalModule holds the rows every PayPal checkout module repeats.
func paypalModule(prefix, title, status string, sortOrder string) []*model.Configuration {
	return rows(groupModules,
		setting{key(prefix, configuration.SuffixStatus), status, "Enable " + title, "True to offer " + title + " at checkout."},
		setting{key(prefix, configuration.SuffixSortOrder), sortOrder, "Sort order of display.", ""},
		setting{key(prefix, configuration.SuffixZone), "0", "Payment Zone", "Only offer to addresses in this geo zone. 0 for everywhere."},
		setting{key(prefix, configuration.SuffixOrderStatusID), "2", "Completed Order Status", "Status for captured payments."},
		setting{key(prefix, configuration.SuffixPendingStatusID), "1", "Pending Order Status", "Status for payments still under review."},
		setting{key(prefix, configuration.SuffixMinOrderTotal), "", "Minimum Order Total", "Hide the module below this total."},
		setting{key(prefix, configuration.SuffixMaxOrderTotal), "", "Maximum Order Total", "Hide the module above this total."},
		setting{key(prefix, configuration.SuffixCurrencies), "", "Currencies", "Comma separated currency codes. Empty accepts all."},
	)
}

func PayPalR() *Plugin {
	base := paypalModule(configuration.PrefixPayPalR, "PayPal", "False", "10")
	base = append(base, rows(groupModules,
		setting{key(configuration.PrefixPayPalR, configuration.SuffixTransactionMode), "Final Sale", "Transaction Mode", "Final Sale captures at checkout, Auth Only authorizes."},
		setting{key(configuration.PrefixPayPalR, configuration.SuffixButtonColor), "gold", "Button Color", "gold, blue, silver, white or black."},
		setting{key(configuration.PrefixPayPalR, configuration.SuffixButtonShape), "rect", "Button Shape", "rect or pill."},
		setting{key(configuration.PrefixPayPalR, configuration.SuffixButtonLayout), "vertical", "Button Layout", "vertical or horizontal."},
		setting{key(configuration.PrefixPayPalR, configuration.SuffixDebug), "Off", "Debug Mode", "Log gateway requests and responses."},
		setting{"MODULE_PAYMENT_PAYPALR_ACCEPT_CARDS", "false", "Accept Cards", "Show the card fields under the PayPal button."},
	)...)

	var wallets []*model.Configuration
	wallets = append(wallets, paypalModule(configuration.PrefixPayPalRVenmo, "Venmo", "False", "11")...)
	wallets = append(wallets, paypalModule(configuration.PrefixPayPalRGooglePay, "Google Pay", "False", "12")...)
	wallets = append(wallets, rows(groupModules,
		setting{key(configuration.PrefixPayPalRGooglePay, configuration.SuffixMerchantID), "", "Google Pay Merchant ID", "Required in live mode."},
	)...)
	wallets = append(wallets, paypalModule(configuration.PrefixPayPalRApplePay, "Apple Pay", "False", "13")...)
	wallets = append(wallets, rows(groupModules,
		setting{key(configuration.PrefixPayPalRApplePay, configuration.SuffixMerchantDomain), "", "Apple Pay Domain", "Domain registered with Apple Pay."},
	)...)

	advanced := paypalModule(configuration.PrefixPayPalAC, "Credit Card (PayPal Advanced Checkout)", "False", "14")
	advanced = append(advanced, rows(groupModules,
		setting{key(configuration.PrefixPayPalAC, configuration.SuffixTransactionMode), "Final Sale", "Transaction Mode", "Final Sale captures at checkout, Auth Only authorizes."},
	)...)

	return &Plugin{
		Name:       "paypalr",
		VersionKey: key(configuration.PrefixPayPalR, configuration.SuffixVersion),
		Prefixes:   []string{configuration.PrefixPayPalR, configuration.PrefixPayPalAC},
		Steps: []Step{
			{Version: "1.0.0", Insert: base},
			{Version: "1.1.0", Insert: wallets},
			{
				Version: "1.2.0",
				Insert: rows(groupModules,
					setting{configuration.SubscriptionGateway, "rest", "Subscription Gateway", "rest or nvp. The other gateway is tried when the first fails."},
					setting{configuration.SubscriptionPeriodAttribute, "", "Billing Period Attribute", "Product option holding the billing period."},
					setting{configuration.SubscriptionFrequencyAttribute, "", "Billing Frequency Attribute", "Product option holding the billing frequency."},
					setting{configuration.SubscriptionCyclesAttribute, "", "Total Cycles Attribute", "Product option holding the number of billing cycles."},
					setting{configuration.SubscriptionStartAttribute, "", "Start Date Attribute", "Product option holding the first billing date."},
				),
			},
			{
				Version: "1.3.0",
				Insert:  advanced,
				Delete:  []string{"MODULE_PAYMENT_PAYPALR_ACCEPT_CARDS"},
			},
		},
	}
}

func Braintree() *Plugin {
	prefix := configuration.PrefixBraintreePayPal
	return &Plugin{
		Name:       "braintree",
		VersionKey: key(prefix, configuration.SuffixVersion),
		Prefixes:   []string{prefix},
		Steps: []Step{
			{
				Version: "1.0.0",
				Insert: rows(groupModules,
					setting{key(prefix, configuration.SuffixStatus), "False", "Enable PayPal via Braintree", "True to offer PayPal through Braintree."},
					setting{key(prefix, configuration.SuffixSortOrder), "20", "Sort order of display.", ""},
					setting{key(prefix, configuration.SuffixZone), "0", "Payment Zone", "Only offer to addresses in this geo zone. 0 for everywhere."},
					setting{key(prefix, configuration.SuffixOrderStatusID), "2", "Order Status", "Status for settled payments."},
					setting{key(prefix, configuration.SuffixPendingStatusID), "1", "Pending Order Status", "Status for payments still settling."},
				),
			},
			{
				Version: "1.1.0",
				Insert: rows(groupModules,
					setting{key(prefix, configuration.SuffixMinOrderTotal), "", "Minimum Order Total", "Hide the module below this total."},
					setting{key(prefix, configuration.SuffixMaxOrderTotal), "", "Maximum Order Total", "Hide the module above this total."},
					setting{key(prefix, configuration.SuffixCurrencies), "", "Currencies", "Comma separated currency codes. Empty accepts all."},
				),
			},
		},
	}
}

func OPRC() *Plugin {
	return &Plugin{
		Name:       "oprc",
		VersionKey: configuration.OPRCVersion,
		Prefixes:   []string{"OPRC_"},
		Steps: []Step{
			{
				Version: "1.0.0",
				Insert: rows(groupOPRC,
					setting{configuration.OPRCStatus, "true", "Enable One Page Checkout", "Use the one page checkout instead of the multi page flow."},
					setting{configuration.OPRCGuestCheckout, "true", "Guest Checkout", "Allow checkout without an account."},
				),
			},
			{
				Version: "1.1.0",
				Insert: rows(groupOPRC,
					setting{configuration.OPRCStockMessage, "Some items in your cart are out of stock.", "Stock Message", "Shown when stock checking blocks the order."},
				),
			},
		},
	}
}
