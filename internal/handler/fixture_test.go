package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/client"
	"storefront-payments/internal/client/paypaltest"
	"storefront-payments/internal/config"
	"storefront-payments/internal/events"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/service"
	"storefront-payments/internal/session"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const baseURL = "https://shop.example.com"

type handlerFixture struct {
	db     *gorm.DB
	mock   *paypaltest.MockPayPal
	config repository.ConfigurationRepository

	orderRepo        repository.OrderRepository
	subscriptionRepo repository.SubscriptionRepository

	checkout  *CheckoutHandler
	wallet    *WalletHandler
	paypal    *PaypalHandler
	recurring *RecurringHandler
	profiles  service.ProfileService

	widget   *model.Product
	customer *model.Customer
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	db, err := client.OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)

	mock := paypaltest.NewMockPayPal()
	t.Cleanup(mock.Close)
	paypal := client.NewPaypalClient(&config.Paypal{
		BaseApiURL:   mock.URL(),
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
	})

	f := &handlerFixture{
		db:               db,
		mock:             mock,
		config:           repository.NewConfigurationRepository(db),
		orderRepo:        repository.NewOrderRepository(db),
		subscriptionRepo: repository.NewSubscriptionRepository(db),
	}
	f.settings(t, map[string]string{
		"DEFAULT_CURRENCY":                "USD",
		"DEFAULT_ORDERS_STATUS_ID":        "1",
		"MODULE_SHIPPING_FLAT_COST":       "5.00",
		"MODULE_SHIPPING_FLAT_TEXT_TITLE": "Flat Rate",

		"MODULE_PAYMENT_PAYPALR_STATUS":          "True",
		"MODULE_PAYMENT_PAYPALR_ORDER_STATUS_ID": "2",
	})

	f.widget = &model.Product{Model: "W-1", Name: "Widget", Price: decimal.RequireFromString("10.00"), TaxRate: decimal.RequireFromString("7"), Quantity: 10}
	require.NoError(t, db.Create(f.widget).Error)

	f.customer = &model.Customer{FirstName: "Ada", LastName: "Buyer", Email: "ada@example.com"}
	require.NoError(t, db.Create(f.customer).Error)
	addr := &model.AddressBook{CustomerID: f.customer.ID, FirstName: "Ada", LastName: "Buyer", Street: "1 Main St", City: "Springfield", CountryCode: "US"}
	require.NoError(t, db.Create(addr).Error)
	require.NoError(t, db.Model(f.customer).Update("default_address_id", addr.ID).Error)

	transactionRepo := repository.NewTransactionRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	registry := paymentmodule.NewRegistry(customerRepo, paymentmodule.Credentials{PayPal: true})
	sdk := paymentmodule.PayPalSDK{ClientID: "client", Environment: "sandbox"}
	renderer := paymentmodule.NewRenderer(nil, sdk, "sandbox")

	manager := profile.NewManager(profile.GatewayREST, profile.NewRESTGateway(paypal, f.subscriptionRepo))
	f.profiles = service.NewProfileService(manager, f.subscriptionRepo, f.config, events.NewLogNotifier(), baseURL)

	checkoutService := checkout.NewService(
		db,
		f.config,
		repository.NewProductRepository(db),
		f.orderRepo,
		repository.NewCouponRepository(db),
		repository.NewInventoryRepository(db),
		customerRepo,
		registry,
		renderer,
		paymentmodule.NewProcessor(paypal, nil),
		paymentmodule.NewBookkeeper(f.orderRepo, transactionRepo),
		f.profiles,
		events.NewLogNotifier(),
	)
	walletService := service.NewWalletService(checkoutService, registry, paypal, f.config, sdk, baseURL)
	moduleService := service.NewModuleService(checkoutService, registry, renderer, nil, f.config)
	paypalService := service.NewPaypalService(
		db,
		paypal,
		f.config,
		f.orderRepo,
		transactionRepo,
		repository.NewWebhookEventRepository(db),
		f.profiles,
	)

	f.checkout = NewCheckoutHandler(checkoutService, moduleService, baseURL)
	f.wallet = NewWalletHandler(walletService, baseURL)
	f.paypal = NewPaypalHandler(paypalService, walletService, f.profiles, baseURL)
	f.recurring = NewRecurringHandler(f.profiles)
	return f
}

func (f *handlerFixture) settings(t *testing.T, values map[string]string) {
	t.Helper()
	for k, v := range values {
		require.NoError(t, f.config.Set(context.Background(), nil, k, v))
	}
}

// customerSession is a logged in shopper with an empty cart.
func (f *handlerFixture) customerSession() *session.Data {
	return &session.Data{CustomerID: f.customer.ID}
}

type call struct {
	method  string
	target  string
	json    interface{}
	form    string
	params  map[string]string
	session *session.Data
}

// serve runs h the way the router would, with sess as the loaded session.
func serve(t *testing.T, h echo.HandlerFunc, in call) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()

	method := in.method
	if method == "" {
		method = http.MethodPost
	}
	target := in.target
	if target == "" {
		target = "/"
	}
	var req *http.Request
	switch {
	case in.json != nil:
		body, err := json.Marshal(in.json)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(body)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	case in.form != "":
		req = httptest.NewRequest(method, target, strings.NewReader(in.form))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	default:
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(in.params) > 0 {
		var names, values []string
		for k, v := range in.params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if in.session != nil {
		middleware.SetSession(c, in.session)
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
