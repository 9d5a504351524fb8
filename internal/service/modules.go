package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/session"

	"github.com/rs/zerolog/log"
)

var ErrModuleDisabled = errors.New("payment module disabled")

// ModuleService lists the payment modules a shopper can pick for the current
// cart and hands out Braintree client tokens.
type ModuleService interface {
	Available(ctx context.Context, sess *session.Data) ([]*paymentmodule.Bootstrap, error)
	BraintreeClientToken(ctx context.Context) (string, error)
}

type moduleServiceImpl struct {
	checkout checkout.Service
	registry *paymentmodule.Registry
	renderer *paymentmodule.Renderer
	tokens   *paymentmodule.TokenProvider
	settings configuration.Source
}

func NewModuleService(
	checkoutService checkout.Service,
	registry *paymentmodule.Registry,
	renderer *paymentmodule.Renderer,
	tokens *paymentmodule.TokenProvider,
	settings configuration.Source,
) ModuleService {
	return &moduleServiceImpl{
		checkout: checkoutService,
		registry: registry,
		renderer: renderer,
		tokens:   tokens,
		settings: settings,
	}
}

// Available renders the bootstrap of every eligible module. An empty cart has
// no modules; a module whose bootstrap fails is left out.
func (s *moduleServiceImpl) Available(ctx context.Context, sess *session.Data) ([]*paymentmodule.Bootstrap, error) {
	quote, err := s.checkout.Quote(ctx, sess)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			return []*paymentmodule.Bootstrap{}, nil
		}
		return nil, err
	}

	defs, err := s.registry.Available(ctx, quote.Settings, quote.Totals.Total, quote.Currency, quote.Billing)
	if err != nil {
		return nil, fmt.Errorf("list payment modules: %w", err)
	}

	out := make([]*paymentmodule.Bootstrap, 0, len(defs))
	for _, def := range defs {
		b, err := s.renderer.Bootstrap(ctx, def, quote.Settings, quote.Currency)
		if err != nil {
			log.Error().Err(err).Str("module", def.Code).Msg("payment module bootstrap failed")
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *moduleServiceImpl) BraintreeClientToken(ctx context.Context) (string, error) {
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}
	def, _ := paymentmodule.Lookup(paymentmodule.CodeBraintree)
	if !settings.Bool(def.Key(configuration.SuffixStatus)) {
		return "", fmt.Errorf("%w: %s", ErrModuleDisabled, def.Code)
	}
	return s.tokens.ClientToken(ctx)
}
