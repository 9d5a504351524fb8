package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/recurring"
	"storefront-payments/internal/session"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	msgCartChanged       = "Your cart was changed in another window. Please review your order before confirming."
	msgChooseShipping    = "Please choose a shipping method."
	msgConditions        = "Please confirm the terms and conditions bound to this order."
	msgChoosePayment     = "Please select a payment method for your order."
	msgPaymentDeclined   = "Your payment was declined. Please choose another payment method."
	msgPaymentIncomplete = "Please complete the payment step before placing your order."
	msgPaymentChanged    = "Your order total changed after the payment was approved. Please approve the payment again."
	msgUnavailable       = "The payment service is temporarily unavailable. Please try again in a few minutes."
	msgSubscriptionPay   = "Subscription products can only be paid with PayPal."
	msgBadTerms          = "%s: the billing terms of this product are not valid."
	msgStock             = "Products marked with *** are out of stock in the quantity you requested."
	msgOrderPlaced       = "Thank you! Your order has been placed."
	msgProfileFailed     = "Your order was placed but its recurring billing could not be started. We will contact you."
)

// pendingProfile is a subscription line waiting for its order.
type pendingProfile struct {
	line     int
	schedule *recurring.Schedule
}

// Process confirms the order. Every shopper facing rejection comes back as a
// Result; the returned error is reserved for storage failures.
func (s *serviceImpl) Process(ctx context.Context, sess *session.Data, req *ProcessRequest) (*Result, error) {
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if len(sess.Cart) == 0 {
		return redirect(PageShoppingCart, ""), nil
	}

	if !sess.LoggedIn() && !(sess.Guest && settings.Bool(configuration.OPRCGuestCheckout)) {
		return redirect(PageLogin, ""), nil
	}

	if req.CartID != sess.CartID {
		sess.AddMessage(StackCheckout, session.MessageError, msgCartChanged)
		return redirect(PageCheckout, msgCartChanged), nil
	}

	lines, err := s.lines(ctx, sess)
	if err != nil {
		if errors.Is(err, ErrProductUnavailable) {
			log.Warn().Err(err).Msg("checkout with unavailable product")
			return redirect(PageShoppingCart, "A product in your cart is no longer available."), nil
		}
		return nil, err
	}

	if settings.Bool(configuration.StockCheck) && !settings.Bool(configuration.StockAllowCheckout) {
		if short := shortStock(lines); short != nil {
			log.Warn().Uint("product_id", short.ID).Int("stock", short.Quantity).Msg("checkout over stock")
			return s.fail(sess, settings.StringOr(configuration.OPRCStockMessage, msgStock)), nil
		}
	}

	if !Virtual(lines) && sess.Shipping == nil {
		return s.fail(sess, msgChooseShipping), nil
	}

	if req.Conditions {
		sess.ConditionsAccepted = true
	}
	if settings.Bool(configuration.DisplayConditionsOnCheckout) && !sess.ConditionsAccepted {
		return s.fail(sess, msgConditions), nil
	}

	q := &Quote{
		Settings: settings,
		Lines:    lines,
		Currency: settings.StringOr(configuration.DefaultCurrency, "USD"),
	}
	if !Virtual(lines) {
		q.Shipping = &Shipping{Title: sess.Shipping.Title, Cost: sess.Shipping.Cost}
	}
	if sess.CouponCode != "" {
		code := sess.CouponCode
		subtotal := CalculateTotals(lines, nil, nil).Subtotal
		coupon, err := s.validateCoupon(ctx, code, sess.CustomerID, subtotal)
		if err != nil {
			if !isCouponRejection(err) {
				return nil, err
			}
			sess.CouponCode = ""
			return s.fail(sess, couponMessage(code, err)), nil
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

	code := req.Payment
	if code == "" {
		code = sess.Payment
	}
	if q.Totals.Total.IsZero() {
		code = paymentmodule.CodeFreeCharger
	}
	def, ok := paymentmodule.Lookup(code)
	if !ok {
		return s.fail(sess, msgChoosePayment), nil
	}
	eligible, reason, err := s.registry.Eligible(ctx, def, settings, q.Totals.Total, q.Currency, q.Billing)
	if err != nil {
		return nil, err
	}
	if !eligible {
		log.Warn().Str("module", def.Code).Str("reason", reason).Msg("payment module not eligible at checkout")
		return s.fail(sess, msgChoosePayment), nil
	}

	profiles, rejected := s.subscriptions(settings, q)
	if rejected != nil {
		return s.fail(sess, fmt.Sprintf(msgBadTerms, rejected.Name)), nil
	}
	if len(profiles) > 0 && def.Gateway != paymentmodule.GatewayPayPal {
		return s.fail(sess, msgSubscriptionPay), nil
	}

	fields, err := s.paymentFields(def, sess, req.Fields)
	if err != nil {
		return nil, err
	}
	result, err := s.processor.Charge(ctx, def, settings, &paymentmodule.ChargeRequest{
		Reference: sess.CartID,
		Amount:    q.Totals.Total,
		Currency:  q.Currency,
		Fields:    fields,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", def.Code).Str("total", q.Totals.Total.StringFixed(2)).Msg("payment failed")
		if errors.Is(err, paymentmodule.ErrAmountMismatch) {
			sess.Wallet = nil
		}
		return s.fail(sess, paymentMessage(err)), nil
	}

	if req.Comments != "" {
		sess.Comments = req.Comments
	}
	customer, err := s.customer(ctx, sess)
	if err != nil {
		return nil, err
	}
	order := s.newOrder(sess, customer, q, def, req.IPAddress)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		if q.Coupon != nil {
			if err := s.couponRepo.Redeem(ctx, tx, q.Coupon.ID, sess.CustomerID, order.ID); err != nil {
				return fmt.Errorf("redeem coupon %s: %w", q.Coupon.Code, err)
			}
		}
		if settings.Bool(configuration.StockLimited) {
			for _, l := range lines {
				if err := s.inventoryRepo.Decrement(ctx, tx, l.Product.ID, l.Quantity); err != nil {
					return fmt.Errorf("decrement stock of product %d: %w", l.Product.ID, err)
				}
			}
		}
		return s.bookkeeper.Record(ctx, tx, order, def, settings, result)
	})
	if err != nil {
		log.Error().Err(err).
			Str("module", def.Code).
			Str("transaction_id", result.TransactionID).
			Msg("payment taken but order not stored")
		return nil, err
	}

	var approvalURL string
	for _, p := range profiles {
		item := &order.Products[p.line]
		rec, err := s.profiles.CreateForOrder(ctx, order, item, p.schedule, result)
		if err != nil {
			log.Error().Err(err).Uint("order_id", order.ID).Uint("product_id", item.ProductID).Msg("recurring profile not created")
			sess.AddMessage(StackCheckout, session.MessageWarning, msgProfileFailed)
			continue
		}
		if rec != nil && rec.ApprovalURL != "" && approvalURL == "" {
			approvalURL = rec.ApprovalURL
		}
	}

	err = s.notifier.OrderPlaced(ctx, &events.OrderPlaced{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Email:         order.CustomerEmail,
		PaymentModule: def.Code,
		TransactionID: result.TransactionID,
		Total:         order.OrderTotal,
		Currency:      order.Currency,
		StatusID:      order.OrdersStatus,
	})
	if err != nil {
		log.Warn().Err(err).Uint("order_id", order.ID).Msg("order placed event not published")
	}

	sess.ResetCart()
	sess.LastOrderID = order.ID
	sess.AddMessage(StackCheckout, session.MessageSuccess, msgOrderPlaced)

	log.Info().Uint("order_id", order.ID).Str("module", def.Code).Str("total", order.OrderTotal.StringFixed(2)).Msg("order placed")
	return &Result{
		Status:      StatusSuccess,
		Message:     msgOrderPlaced,
		Redirect:    PageSuccess,
		OrderID:     order.ID,
		ApprovalURL: approvalURL,
	}, nil
}

func redirect(page, message string) *Result {
	return &Result{Status: StatusRedirect, Redirect: page, Message: message}
}

// shortStock is the first product whose cart lines together ask for more
// than is in stock. The same product may appear once per attribute set.
func shortStock(lines []Line) *model.Product {
	wanted := make(map[uint]int, len(lines))
	for _, l := range lines {
		wanted[l.Product.ID] += l.Quantity
	}
	for _, l := range lines {
		if l.Product.Quantity < wanted[l.Product.ID] {
			return l.Product
		}
	}
	return nil
}

func (s *serviceImpl) fail(sess *session.Data, message string) *Result {
	sess.AddMessage(StackCheckout, session.MessageError, message)
	return &Result{Status: StatusError, Message: message}
}

func paymentMessage(err error) string {
	switch {
	case errors.Is(err, paymentmodule.ErrAmountMismatch):
		return msgPaymentChanged
	case errors.Is(err, paymentmodule.ErrMissingPaymentData), errors.Is(err, paymentmodule.ErrOrderNotApproved):
		return msgPaymentIncomplete
	case errors.Is(err, paymentmodule.ErrPaymentDeclined):
		return msgPaymentDeclined
	}
	return msgUnavailable
}

// paymentFields renders the module's process button and merges its hidden
// inputs over the submitted form fields.
func (s *serviceImpl) paymentFields(def paymentmodule.Definition, sess *session.Data, submitted map[string]string) (map[string]string, error) {
	button, err := s.renderer.ProcessButton(paymentmodule.ButtonFields(def, sess.Wallet, submitted))
	if err != nil {
		return nil, err
	}
	hidden, err := ExtractHiddenFields(button)
	if err != nil {
		return nil, fmt.Errorf("parse %s process button: %w", def.Code, err)
	}

	fields := make(map[string]string, len(submitted)+len(hidden))
	for k, v := range submitted {
		fields[k] = v
	}
	for k, v := range hidden {
		if v == "" {
			if _, ok := fields[k]; ok {
				continue
			}
		}
		fields[k] = v
	}
	return fields, nil
}

// subscriptions builds a schedule for every cart line whose attributes
// describe recurring billing. rejected is the first product whose terms do
// not make a valid schedule.
func (s *serviceImpl) subscriptions(settings configuration.Settings, q *Quote) (profiles []pendingProfile, rejected *model.Product) {
	names := recurring.DefaultAttributeNames()
	names.Period = settings.StringOr(configuration.SubscriptionPeriodAttribute, names.Period)
	names.Frequency = settings.StringOr(configuration.SubscriptionFrequencyAttribute, names.Frequency)
	names.Cycles = settings.StringOr(configuration.SubscriptionCyclesAttribute, names.Cycles)
	names.StartDate = settings.StringOr(configuration.SubscriptionStartAttribute, names.StartDate)

	for i, l := range q.Lines {
		terms, ok, err := recurring.TermsFromAttributes(l.Attributes, names)
		if ok && err == nil {
			var schedule *recurring.Schedule
			schedule, err = s.builder.Build(*terms, l.Amount(), l.Tax(), q.Currency)
			if err == nil {
				profiles = append(profiles, pendingProfile{line: i, schedule: schedule})
				continue
			}
		}
		if err != nil {
			log.Warn().Err(err).Uint("product_id", l.Product.ID).Msg("subscription terms rejected")
			return nil, l.Product
		}
	}
	return profiles, nil
}

func (s *serviceImpl) newOrder(
	sess *session.Data,
	customer *model.Customer,
	q *Quote,
	def paymentmodule.Definition,
	ip string,
) *model.Order {
	statusID := q.Settings.IntOr(configuration.DefaultOrdersStatusID, model.OrderStatusPending)
	order := &model.Order{
		CustomerID:        sess.CustomerID,
		CustomerEmail:     sess.Email,
		Billing:           snapshot(q.Billing),
		Delivery:          snapshot(q.Delivery),
		PaymentMethod:     def.Title,
		PaymentModuleCode: def.Code,
		Currency:          q.Currency,
		OrderTotal:        q.Totals.Total,
		OrderTax:          q.Totals.Tax,
		OrdersStatus:      statusID,
		Comments:          sess.Comments,
		IPAddress:         ip,
		Totals:            q.Totals.Lines,
		History: []model.OrderStatusHistory{{
			OrdersStatusID:   statusID,
			CustomerNotified: true,
			Comments:         sess.Comments,
			UpdatedBy:        "customer",
		}},
	}
	if customer != nil {
		order.CustomerEmail = customer.Email
		order.CustomerTelephone = customer.Telephone
	}
	if q.Shipping != nil {
		order.ShippingMethod = q.Shipping.Title
		order.ShippingModuleCode = sess.Shipping.Module + "_" + sess.Shipping.Method
	}
	if q.Coupon != nil {
		order.CouponCode = q.Coupon.Code
	}

	for _, l := range q.Lines {
		attrs := ""
		if len(l.Attributes) > 0 {
			b, _ := json.Marshal(l.Attributes)
			attrs = string(b)
		}
		order.Products = append(order.Products, model.OrderProduct{
			ProductID:  l.Product.ID,
			Model:      l.Product.Model,
			Name:       l.Product.Name,
			Price:      l.Product.Price,
			Tax:        l.Product.TaxRate,
			Quantity:   l.Quantity,
			Attributes: attrs,
		})
	}
	return order
}

func snapshot(a *model.AddressBook) model.Address {
	if a == nil {
		return model.Address{}
	}
	return model.Address{
		Name:        strings.TrimSpace(a.FirstName + " " + a.LastName),
		Company:     a.Company,
		Street:      a.Street,
		Suburb:      a.Suburb,
		City:        a.City,
		Postcode:    a.Postcode,
		State:       a.State,
		CountryCode: a.CountryCode,
		ZoneID:      a.ZoneID,
	}
}
