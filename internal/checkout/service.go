// Package checkout is the one page checkout: cart maintenance, checkout
// selections and the order placement pipeline behind the AJAX confirm button.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/recurring"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/session"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Storefront pages a checkout response can send the shopper to.
const (
	PageShoppingCart = "shopping_cart"
	PageLogin        = "login"
	PageCheckout     = "checkout"
	PageSuccess      = "checkout_success"
)

// StackCheckout is the message stack shown on the checkout page.
const StackCheckout = "checkout"

const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRedirect = "redirect"
)

const shippingFlat = "flat"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
)

type AddToCartRequest struct {
	ProductID  uint
	Quantity   int
	Attributes map[string]string
}

type UpdateRequest struct {
	Shipping     string // module_method, e.g. flat_flat
	Payment      string
	CouponCode   string
	RemoveCoupon bool
	Comments     *string
	Conditions   *bool
	BillTo       uint
	SendTo       uint
	GuestEmail   string
}

type ProcessRequest struct {
	CartID     string
	Payment    string
	Comments   string
	Conditions bool
	Fields     map[string]string
	IPAddress  string
}

// Result is what the confirm button gets back. Redirect names a storefront
// page.
type Result struct {
	Status   string
	Message  string
	Redirect string
	OrderID  uint
	// ApprovalURL is where the buyer approves a subscription started with
	// the order. Empty when no profile waits for approval.
	ApprovalURL string
}

// Quote is a priced snapshot of the shopper's cart.
type Quote struct {
	Settings configuration.Settings
	Lines    []Line
	Shipping *Shipping
	Coupon   *model.Coupon
	Totals   *Totals
	Currency string
	Billing  *model.AddressBook
	Delivery *model.AddressBook
}

// ProfileCreator starts the recurring profile for a subscription line of a
// placed order. A nil profile with no error means the order paid every cycle.
type ProfileCreator interface {
	CreateForOrder(
		ctx context.Context,
		order *model.Order,
		item *model.OrderProduct,
		schedule *recurring.Schedule,
		payment *paymentmodule.PaymentResult,
	) (*model.RecurringProfile, error)
}

type Service interface {
	AddToCart(ctx context.Context, sess *session.Data, req *AddToCartRequest) error
	Update(ctx context.Context, sess *session.Data, req *UpdateRequest) (*Quote, error)
	Quote(ctx context.Context, sess *session.Data) (*Quote, error)
	Process(ctx context.Context, sess *session.Data, req *ProcessRequest) (*Result, error)
}

type serviceImpl struct {
	db            *gorm.DB
	settings      configuration.Source
	productRepo   repository.ProductRepository
	orderRepo     repository.OrderRepository
	couponRepo    repository.CouponRepository
	inventoryRepo repository.InventoryRepository
	customerRepo  repository.CustomerRepository
	registry      *paymentmodule.Registry
	renderer      *paymentmodule.Renderer
	processor     *paymentmodule.Processor
	bookkeeper    *paymentmodule.Bookkeeper
	profiles      ProfileCreator
	notifier      events.Notifier
	builder       *recurring.Builder
	now           func() time.Time
}

func NewService(
	db *gorm.DB,
	settings configuration.Source,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	couponRepo repository.CouponRepository,
	inventoryRepo repository.InventoryRepository,
	customerRepo repository.CustomerRepository,
	registry *paymentmodule.Registry,
	renderer *paymentmodule.Renderer,
	processor *paymentmodule.Processor,
	bookkeeper *paymentmodule.Bookkeeper,
	profiles ProfileCreator,
	notifier events.Notifier,
) Service {
	return &serviceImpl{
		db:            db,
		settings:      settings,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		couponRepo:    couponRepo,
		inventoryRepo: inventoryRepo,
		customerRepo:  customerRepo,
		registry:      registry,
		renderer:      renderer,
		processor:     processor,
		bookkeeper:    bookkeeper,
		profiles:      profiles,
		notifier:      notifier,
		builder:       recurring.NewBuilder(),
		now:           time.Now,
	}
}

func (s *serviceImpl) AddToCart(ctx context.Context, sess *session.Data, req *AddToCartRequest) error {
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %d", ErrProductUnavailable, req.ProductID)
		}
		return fmt.Errorf("find product %d: %w", req.ProductID, err)
	}
	if !product.Status {
		return fmt.Errorf("%w: product %d", ErrProductUnavailable, req.ProductID)
	}

	sess.AddToCart(session.CartItem{
		ProductID:  product.ID,
		Quantity:   req.Quantity,
		Attributes: req.Attributes,
	})
	return nil
}

// Update applies checkout selections. Rejected selections are reported on the
// checkout message stack and leave the previous value in place.
func (s *serviceImpl) Update(ctx context.Context, sess *session.Data, req *UpdateRequest) (*Quote, error) {
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if req.GuestEmail != "" && !sess.LoggedIn() {
		sess.Guest = true
		sess.Email = strings.TrimSpace(req.GuestEmail)
	}
	if req.BillTo != 0 {
		sess.BillTo = req.BillTo
	}
	if req.SendTo != 0 {
		sess.SendTo = req.SendTo
	}
	if req.Comments != nil {
		sess.Comments = *req.Comments
	}
	if req.Conditions != nil {
		sess.ConditionsAccepted = *req.Conditions
	}

	if req.Shipping != "" {
		quote, ok := flatQuote(settings, req.Shipping)
		if ok {
			sess.Shipping = quote
		} else {
			sess.AddMessage(StackCheckout, session.MessageError, "The selected shipping method is not available.")
		}
	}

	if req.Payment != "" {
		if _, ok := paymentmodule.Lookup(req.Payment); ok {
			sess.Payment = req.Payment
		} else {
			sess.AddMessage(StackCheckout, session.MessageError, "Please select a valid payment method.")
		}
	}

	if req.RemoveCoupon {
		sess.CouponCode = ""
	}
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		lines, err := s.lines(ctx, sess)
		if err != nil {
			return nil, err
		}
		subtotal := CalculateTotals(lines, nil, nil).Subtotal
		if _, err := s.validateCoupon(ctx, code, sess.CustomerID, subtotal); err != nil {
			if !isCouponRejection(err) {
				return nil, err
			}
			sess.AddMessage(StackCheckout, session.MessageError, couponMessage(code, err))
		} else {
			sess.CouponCode = code
			sess.AddMessage(StackCheckout, session.MessageSuccess, fmt.Sprintf("Coupon %q applied.", code))
		}
	}

	return s.quote(ctx, sess, settings)
}

// flatQuote is the only shipping quote this service prices.
func flatQuote(settings configuration.Settings, id string) (*session.ShippingQuote, bool) {
	module, method, _ := strings.Cut(id, "_")
	if module != shippingFlat {
		return nil, false
	}
	if method == "" {
		method = shippingFlat
	}
	return &session.ShippingQuote{
		Module: module,
		Method: method,
		Title:  settings.StringOr(configuration.ShippingFlatTitle, "Flat Rate"),
		Cost:   settings.Decimal(configuration.ShippingFlatCost),
	}, true
}

func (s *serviceImpl) Quote(ctx context.Context, sess *session.Data) (*Quote, error) {
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return s.quote(ctx, sess, settings)
}

// quote prices the session cart. A coupon that no longer validates is left
// out of the totals; Process reports it.
func (s *serviceImpl) quote(ctx context.Context, sess *session.Data, settings configuration.Settings) (*Quote, error) {
	if len(sess.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	lines, err := s.lines(ctx, sess)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Settings: settings,
		Lines:    lines,
		Currency: settings.StringOr(configuration.DefaultCurrency, "USD"),
	}
	if !Virtual(lines) && sess.Shipping != nil {
		q.Shipping = &Shipping{Title: sess.Shipping.Title, Cost: sess.Shipping.Cost}
	}
	if sess.CouponCode != "" {
		subtotal := CalculateTotals(lines, nil, nil).Subtotal
		coupon, err := s.validateCoupon(ctx, sess.CouponCode, sess.CustomerID, subtotal)
		if err != nil && !isCouponRejection(err) {
			return nil, err
		}
		q.Coupon = coupon
	}
	q.Totals = CalculateTotals(lines, q.Shipping, q.Coupon)

	if q.Billing, err = s.address(ctx, sess, sess.BillTo); err != nil {
		return nil, err
	}
	if q.Delivery, err = s.address(ctx, sess, sess.SendTo); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *serviceImpl) lines(ctx context.Context, sess *session.Data) ([]Line, error) {
	ids := make([]uint, 0, len(sess.Cart))
	for _, item := range sess.Cart {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}
	byID := make(map[uint]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(sess.Cart))
	for _, item := range sess.Cart {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, item.ProductID)
		}
		lines = append(lines, Line{Product: p, Quantity: item.Quantity, Attributes: item.Attributes})
	}
	return lines, nil
}

// address resolves an address book entry of the logged in customer, falling
// back to the customer's default address.
func (s *serviceImpl) address(ctx context.Context, sess *session.Data, id uint) (*model.AddressBook, error) {
	if !sess.LoggedIn() {
		return nil, nil
	}
	if id == 0 {
		customer, err := s.customer(ctx, sess)
		if err != nil || customer == nil {
			return nil, err
		}
		id = customer.DefaultAddressID
	}
	if id == 0 {
		return nil, nil
	}
	addr, err := s.customerRepo.FindAddress(ctx, sess.CustomerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find address %d: %w", id, err)
	}
	return addr, nil
}

// customer is the logged in customer, nil for guests.
func (s *serviceImpl) customer(ctx context.Context, sess *session.Data) (*model.Customer, error) {
	if !sess.LoggedIn() {
		return nil, nil
	}
	customer, err := s.customerRepo.FindByID(ctx, sess.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find customer %d: %w", sess.CustomerID, err)
	}
	return customer, nil
}
