package configuration

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Source loads every configuration row as key -> value.
type Source interface {
	All(ctx context.Context) (map[string]string, error)
}

// Settings is a snapshot of the configuration table.
type Settings map[string]string

func Load(ctx context.Context, src Source) (Settings, error) {
	values, err := src.All(ctx)
	if err != nil {
		return nil, err
	}
	return Settings(values), nil
}

func (s Settings) String(key string) string {
	return strings.TrimSpace(s[key])
}

func (s Settings) StringOr(key, fallback string) string {
	if v := s.String(key); v != "" {
		return v
	}
	return fallback
}

// Bool treats True/true/1/yes/on as set. Missing keys are false.
func (s Settings) Bool(key string) bool {
	switch strings.ToLower(s.String(key)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func (s Settings) Int(key string) int {
	n, err := strconv.Atoi(s.String(key))
	if err != nil {
		return 0
	}
	return n
}

func (s Settings) IntOr(key string, fallback int) int {
	if _, ok := s[key]; !ok {
		return fallback
	}
	return s.Int(key)
}

func (s Settings) Decimal(key string) decimal.Decimal {
	d, err := decimal.NewFromString(s.String(key))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// List splits a comma separated value, dropping blanks.
func (s Settings) List(key string) []string {
	raw := s.String(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ModuleKey joins a module prefix and a key suffix: MODULE_PAYMENT_PAYPALR + STATUS.
func ModuleKey(prefix, suffix string) string {
	return prefix + "_" + suffix
}
