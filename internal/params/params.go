// Package params reads typed strategy parameters from a storage.ParameterStore.
package params

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage"
)

// Parameter store keys.
const (
	KeyVolatilityMultiplier    = "VOLATILITY_MULTIPLIER"
	KeyBrokerCommissionPercent = "BROKER_COMMISSION_PERCENT"
	KeyAnalysisPeriodMonths    = "analysis_period_months"
	KeyProfitMarginPercent     = "PROFIT_MARGIN_PERCENT"
	KeyAccountID               = "ACCOUNT_ID"
)

// Defaults applied when a key is absent, in the store's own units.
var Defaults = map[string]string{
	KeyVolatilityMultiplier:    "1.2",
	KeyBrokerCommissionPercent: "0.04",
	KeyAnalysisPeriodMonths:    "4",
	KeyProfitMarginPercent:     "0.8",
}

// LoadStrategyParameters reads and validates the strategy parameters.
// Percent-valued keys are converted to fractions.
// A store failure is wrapped in domain.ErrExternalService; a malformed value in domain.ErrInvalidParameter.
func LoadStrategyParameters(ctx context.Context, store storage.ParameterStore) (domain.StrategyParameters, error) {
	var p domain.StrategyParameters

	k, err := getFloat(ctx, store, KeyVolatilityMultiplier)
	if err != nil {
		return p, err
	}
	commission, err := getFloat(ctx, store, KeyBrokerCommissionPercent)
	if err != nil {
		return p, err
	}
	margin, err := getFloat(ctx, store, KeyProfitMarginPercent)
	if err != nil {
		return p, err
	}
	months, err := getInt(ctx, store, KeyAnalysisPeriodMonths)
	if err != nil {
		return p, err
	}

	p = domain.StrategyParameters{
		VolatilityMultiplier:     k,
		ProfitMarginFraction:     margin / 100,
		BrokerCommissionFraction: commission / 100,
		AnalysisPeriodMonths:     months,
	}
	if err := p.Validate(); err != nil {
		return domain.StrategyParameters{}, err
	}
	return p, nil
}

// LoadAccountID reads the broker account id required by the live order path.
func LoadAccountID(ctx context.Context, store storage.ParameterStore) (string, error) {
	v, ok, err := store.Get(ctx, KeyAccountID)
	if err != nil {
		return "", fmt.Errorf("read %s: %w: %w", KeyAccountID, domain.ErrExternalService, err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is not set", domain.ErrInvalidParameter, KeyAccountID)
	}
	return v, nil
}

// get returns the stored value or its default.
func get(ctx context.Context, store storage.ParameterStore, key string) (string, error) {
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w: %w", key, domain.ErrExternalService, err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return Defaults[key], nil
	}
	return v, nil
}

func getFloat(ctx context.Context, store storage.ParameterStore, key string) (float64, error) {
	raw, err := get(ctx, store, key)
	if err != nil {
		return 0, err
	}
	// Decimal comma is accepted.
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidParameter, key, raw)
	}
	return f, nil
}

func getInt(ctx context.Context, store storage.ParameterStore, key string) (int, error) {
	raw, err := get(ctx, store, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidParameter, key, raw)
	}
	return n, nil
}
