package configuration

// Storefront-wide keys.
const (
	DefaultCurrency             = "DEFAULT_CURRENCY"
	DefaultOrdersStatusID       = "DEFAULT_ORDERS_STATUS_ID"
	StockCheck                  = "STOCK_CHECK"
	StockAllowCheckout          = "STOCK_ALLOW_CHECKOUT"
	StockLimited                = "STOCK_LIMITED"
	DisplayConditionsOnCheckout = "DISPLAY_CONDITIONS_ON_CHECKOUT"
	ShippingFlatCost            = "MODULE_SHIPPING_FLAT_COST"
	ShippingFlatTitle           = "MODULE_SHIPPING_FLAT_TEXT_TITLE"
)

// One Page Responsive Checkout keys.
const (
	OPRCVersion       = "OPRC_VERSION"
	OPRCStatus        = "OPRC_STATUS"
	OPRCGuestCheckout = "OPRC_NOACCOUNT_SWITCH"
	OPRCStockMessage  = "OPRC_STOCK_MESSAGE"
)

// Module key prefixes.
const (
	PrefixPayPalR          = "MODULE_PAYMENT_PAYPALR"
	PrefixPayPalRVenmo     = "MODULE_PAYMENT_PAYPALR_VENMO"
	PrefixPayPalRGooglePay = "MODULE_PAYMENT_PAYPALR_GOOGLEPAY"
	PrefixPayPalRApplePay  = "MODULE_PAYMENT_PAYPALR_APPLEPAY"
	PrefixPayPalAC         = "MODULE_PAYMENT_PAYPALAC"
	PrefixBraintreePayPal  = "MODULE_PAYMENT_BRAINTREE_PAYPAL"
	PrefixFreeCharger      = "MODULE_PAYMENT_FREECHARGER"
)

// Per-module key suffixes, combined with ModuleKey.
const (
	SuffixVersion         = "VERSION"
	SuffixStatus          = "STATUS"
	SuffixSortOrder       = "SORT_ORDER"
	SuffixZone            = "ZONE"
	SuffixOrderStatusID   = "ORDER_STATUS_ID"
	SuffixPendingStatusID = "ORDER_PENDING_STATUS_ID"
	SuffixMinOrderTotal   = "MIN_ORDER_TOTAL"
	SuffixMaxOrderTotal   = "MAX_ORDER_TOTAL"
	SuffixCurrencies      = "CURRENCIES"
	SuffixTransactionMode = "TRANSACTION_MODE"
	SuffixButtonColor     = "BUTTON_COLOR"
	SuffixButtonShape     = "BUTTON_SHAPE"
	SuffixButtonLayout    = "BUTTON_LAYOUT"
	SuffixMerchantID      = "MERCHANT_ID"
	SuffixMerchantDomain  = "MERCHANT_DOMAIN"
	SuffixDebug           = "DEBUGGING"
)

// Subscription keys used by the PayPal REST module.
const (
	SubscriptionGateway            = "MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_GATEWAY"
	SubscriptionPeriodAttribute    = "MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_PERIOD_ATTRIBUTE"
	SubscriptionFrequencyAttribute = "MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_FREQUENCY_ATTRIBUTE"
	SubscriptionCyclesAttribute    = "MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_CYCLES_ATTRIBUTE"
	SubscriptionStartAttribute     = "MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_START_ATTRIBUTE"
)

// TransactionModeAuthOnly authorizes instead of capturing.
const TransactionModeAuthOnly = "Auth Only"
