package paymentmodule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/session"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	paypalSDKURL        = "https://www.paypal.com/sdk/js"
	googlePaySDKURL     = "https://pay.google.com/gp/p/js/pay.js"
	applePaySDKURL      = "https://applepay.cdn-apple.com/jsapi/1.latest/apple-pay-sdk.js"
	braintreeSDKBaseURL = "https://js.braintreegateway.com/web/3.97.2/js/"
)

// Hidden form fields carried by the confirmation form.
const (
	FieldModule        = "payment_module"
	FieldPayPalOrderID = "ppr_order_id"
	FieldWallet        = "ppr_wallet"
	FieldPayerID       = "ppr_payer_id"
	FieldNonce         = "payment_method_nonce"
	FieldDeviceData    = "device_data"
)

var templates = template.Must(template.New("modules").Parse(`
{{define "paypal"}}<script src="{{.SDKURL}}" data-namespace="paypal_{{.Code}}" data-page-type="checkout" async></script>
{{range .ExtraScripts}}<script src="{{.}}" async></script>
{{end}}<div id="{{.Code}}-button-container" class="paypalr-button" data-module="{{.Code}}" data-funding="{{.Funding}}" data-color="{{.Color}}" data-shape="{{.Shape}}" data-layout="{{.Layout}}" data-currency="{{.Currency}}"></div>
{{end}}
{{define "braintree"}}<script src="{{.SDKBase}}client.min.js"></script>
<script src="{{.SDKBase}}paypal-checkout.min.js"></script>
<script src="{{.SDKBase}}data-collector.min.js"></script>
<div id="braintree-paypal-button" data-module="{{.Code}}" data-client-token="{{.ClientToken}}" data-currency="{{.Currency}}" data-intent="{{.Intent}}" data-environment="{{.Environment}}"></div>
{{end}}
{{define "hidden"}}{{range .}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{end}}{{end}}
`))

// PayPalSDK holds the account values the PayPal JS SDK loads with.
type PayPalSDK struct {
	ClientID    string
	MerchantID  string
	Environment string
}

// Bootstrap is the HTML a storefront page includes to show a module button.
type Bootstrap struct {
	Code   string        `json:"code"`
	Title  string        `json:"title"`
	HTML   template.HTML `json:"bootstrap"`
	Hidden bool          `json:"hidden"`
}

type Renderer struct {
	tokens      *TokenProvider
	sdk         PayPalSDK
	environment string
}

func NewRenderer(tokens *TokenProvider, sdk PayPalSDK, braintreeEnvironment string) *Renderer {
	return &Renderer{
		tokens:      tokens,
		sdk:         sdk,
		environment: braintreeEnvironment,
	}
}

// Bootstrap renders the SDK snippet for def. A Braintree module whose client
// token cannot be fetched is reported hidden with an empty snippet.
func (r *Renderer) Bootstrap(ctx context.Context, def Definition, settings configuration.Settings, currency string) (*Bootstrap, error) {
	out := &Bootstrap{Code: def.Code, Title: def.Title}

	var buf bytes.Buffer
	switch def.Gateway {
	case GatewayPayPal:
		if err := templates.ExecuteTemplate(&buf, "paypal", r.paypalData(def, settings, currency)); err != nil {
			return nil, fmt.Errorf("render %s bootstrap: %w", def.Code, err)
		}
	case GatewayBraintree:
		token, err := r.tokens.ClientToken(ctx)
		if err != nil {
			if errors.Is(err, ErrTokenUnavailable) {
				log.Warn().Err(err).Str("module", def.Code).Msg("hiding payment button")
				out.Hidden = true
				return out, nil
			}
			return nil, err
		}
		data := map[string]string{
			"SDKBase":     braintreeSDKBaseURL,
			"Code":        def.Code,
			"ClientToken": token,
			"Currency":    currency,
			"Intent":      Intent(def, settings),
			"Environment": r.environment,
		}
		if err := templates.ExecuteTemplate(&buf, "braintree", data); err != nil {
			return nil, fmt.Errorf("render %s bootstrap: %w", def.Code, err)
		}
	default:
		return out, nil
	}

	out.HTML = template.HTML(buf.String())
	return out, nil
}

type paypalTemplateData struct {
	Code         string
	Funding      string
	SDKURL       string
	ExtraScripts []string
	Color        string
	Shape        string
	Layout       string
	Currency     string
}

func (r *Renderer) paypalData(def Definition, settings configuration.Settings, currency string) paypalTemplateData {
	query := url.Values{}
	query.Set("client-id", r.sdk.ClientID)
	query.Set("currency", strings.ToUpper(currency))
	query.Set("intent", Intent(def, settings))
	if r.sdk.MerchantID != "" {
		query.Set("merchant-id", r.sdk.MerchantID)
	}

	data := paypalTemplateData{
		Code:     def.Code,
		Funding:  def.Funding,
		Color:    settings.StringOr(def.Key(configuration.SuffixButtonColor), "gold"),
		Shape:    settings.StringOr(def.Key(configuration.SuffixButtonShape), "rect"),
		Layout:   settings.StringOr(def.Key(configuration.SuffixButtonLayout), "vertical"),
		Currency: strings.ToUpper(currency),
	}

	switch def.Code {
	case CodeVenmo:
		query.Set("components", "buttons")
		query.Set("enable-funding", "venmo")
	case CodeGooglePay:
		query.Set("components", "googlepay")
		data.ExtraScripts = []string{googlePaySDKURL}
	case CodeApplePay:
		query.Set("components", "applepay")
		data.ExtraScripts = []string{applePaySDKURL}
	case CodeAdvanced:
		query.Set("components", "card-fields")
	default:
		query.Set("components", "buttons")
	}
	if r.sdk.Environment != "live" {
		query.Set("buyer-country", "US")
	}

	data.SDKURL = paypalSDKURL + "?" + query.Encode()
	return data
}

// Intent is the PayPal SDK intent for def: capture, or authorize in auth only mode.
func Intent(def Definition, settings configuration.Settings) string {
	if settings.String(def.Key(configuration.SuffixTransactionMode)) == configuration.TransactionModeAuthOnly {
		return "authorize"
	}
	return "capture"
}

type hiddenField struct {
	Name  string
	Value string
}

// ProcessButton renders fields as hidden inputs, sorted by name.
func (r *Renderer) ProcessButton(fields map[string]string) (string, error) {
	list := make([]hiddenField, 0, len(fields))
	for name, value := range fields {
		list = append(list, hiddenField{Name: name, Value: value})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "hidden", list); err != nil {
		return "", fmt.Errorf("render process button: %w", err)
	}
	return buf.String(), nil
}

// ButtonFields are the values def puts on the confirmation form: the wallet
// order for PayPal modules, the browser nonce for Braintree.
func ButtonFields(def Definition, wallet *session.Wallet, submitted map[string]string) map[string]string {
	fields := map[string]string{FieldModule: def.Code}

	switch def.Gateway {
	case GatewayPayPal:
		if wallet != nil {
			fields[FieldPayPalOrderID] = wallet.PayPalOrderID
			fields[FieldWallet] = wallet.Type
			fields[FieldPayerID] = wallet.PayerID
		}
	case GatewayBraintree:
		fields[FieldNonce] = submitted[FieldNonce]
		fields[FieldDeviceData] = submitted[FieldDeviceData]
	}
	return fields
}
