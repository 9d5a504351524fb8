package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	ErrNoGateway         = errors.New("no recurring profile gateway configured")
	ErrAllGatewaysFailed = errors.New("all recurring profile gateways failed")
)

// Manager routes profile calls to the preferred gateway and falls back to
// the others, in registration order, only after it fails.
type Manager struct {
	preferred string
	order     []string
	gateways  map[string]Gateway
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewManager(preferred string, gateways ...Gateway) *Manager {
	m := &Manager{
		preferred: preferred,
		gateways:  make(map[string]Gateway, len(gateways)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker, len(gateways)),
	}
	for _, gw := range gateways {
		name := gw.Name()
		m.order = append(m.order, name)
		m.gateways[name] = gw
		m.breakers[name] = gobreaker.NewCircuitBreaker(breakerSettings(name))
	}
	return m
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "paypal-" + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("recurring gateway breaker state changed")
		},
	}
}

// Gateways lists gateway names in the order a call without hint tries them.
func (m *Manager) Gateways() []string {
	return m.sequence("")
}

// sequence puts hint first, then the configured preference, then the rest.
func (m *Manager) sequence(hint string) []string {
	seq := make([]string, 0, len(m.order))
	seen := make(map[string]bool, len(m.order))
	add := func(name string) {
		if _, ok := m.gateways[name]; ok && !seen[name] {
			seen[name] = true
			seq = append(seq, name)
		}
	}
	add(hint)
	add(m.preferred)
	for _, name := range m.order {
		add(name)
	}
	return seq
}

func (m *Manager) Create(ctx context.Context, req *CreateRequest, hint string) (*Profile, error) {
	return m.run(ctx, "create", hint, func(gw Gateway) (*Profile, error) {
		return gw.Create(ctx, req)
	})
}

func (m *Manager) Get(ctx context.Context, profileID, hint string) (*Profile, error) {
	return m.run(ctx, "get", hint, func(gw Gateway) (*Profile, error) {
		return gw.Get(ctx, profileID)
	})
}

func (m *Manager) Cancel(ctx context.Context, profileID, hint, note string) (*Profile, error) {
	return m.apply(ctx, profileID, hint, ActionCancel, note)
}

func (m *Manager) Suspend(ctx context.Context, profileID, hint, note string) (*Profile, error) {
	return m.apply(ctx, profileID, hint, ActionSuspend, note)
}

func (m *Manager) Reactivate(ctx context.Context, profileID, hint, note string) (*Profile, error) {
	return m.apply(ctx, profileID, hint, ActionReactivate, note)
}

// apply changes the status and re-reads the profile from the gateway that
// accepted the change. A failed re-read still reports the expected status.
func (m *Manager) apply(ctx context.Context, profileID, hint string, action Action, note string) (*Profile, error) {
	return m.run(ctx, string(action), hint, func(gw Gateway) (*Profile, error) {
		if err := gw.UpdateStatus(ctx, profileID, action, note); err != nil {
			return nil, err
		}

		p, err := gw.Get(ctx, profileID)
		if err != nil {
			log.Warn().Err(err).
				Str("gateway", gw.Name()).
				Str("profile_id", profileID).
				Msg("profile status changed but refresh failed")
			return &Profile{
				ProfileID: profileID,
				Gateway:   gw.Name(),
				Status:    action.resultingStatus(),
			}, nil
		}
		return p, nil
	})
}

func (m *Manager) run(ctx context.Context, op, hint string, call func(gw Gateway) (*Profile, error)) (*Profile, error) {
	seq := m.sequence(hint)
	if len(seq) == 0 {
		return nil, ErrNoGateway
	}

	var errs []error
	for _, name := range seq {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := m.breakers[name].Execute(func() (interface{}, error) {
			return call(m.gateways[name])
		})
		if err == nil {
			p := result.(*Profile)
			if p.Gateway == "" {
				p.Gateway = name
			}
			return p, nil
		}

		log.Warn().Err(err).
			Str("gateway", name).
			Str("op", op).
			Msg("recurring gateway failed")
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	return nil, fmt.Errorf("%w: %w", ErrAllGatewaysFailed, errors.Join(errs...))
}
