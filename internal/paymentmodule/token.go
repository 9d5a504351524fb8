package paymentmodule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

var ErrTokenUnavailable = errors.New("braintree client token unavailable")

// TokenGenerator is satisfied by client.BraintreeClient.
type TokenGenerator interface {
	GenerateClientToken(ctx context.Context) (string, error)
}

// TokenProvider fetches Braintree client tokens, retrying failed calls with
// jittered exponential backoff.
type TokenProvider struct {
	generator TokenGenerator
	attempts  int
	delay     time.Duration
}

func NewTokenProvider(generator TokenGenerator, attempts int, delay time.Duration) *TokenProvider {
	if attempts < 1 {
		attempts = 1
	}
	return &TokenProvider{
		generator: generator,
		attempts:  attempts,
		delay:     delay,
	}
}

func (p *TokenProvider) ClientToken(ctx context.Context) (string, error) {
	if p == nil || p.generator == nil {
		return "", ErrTokenUnavailable
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.delay
	policy.RandomizationFactor = 0.5
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0

	attempt := 0
	var token string
	operation := func() error {
		attempt++
		t, err := p.generator.GenerateClientToken(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		token = t
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("braintree client token failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.attempts-1)), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		log.Error().Err(err).Int("attempts", attempt).Msg("braintree client token unavailable")
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}

	return token, nil
}
