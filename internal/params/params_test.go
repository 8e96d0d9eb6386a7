package params

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage/memory"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, string) error { return nil }

func TestLoadStrategyParameters_Defaults(t *testing.T) {
	p, err := LoadStrategyParameters(context.Background(), memory.NewParameterStore(nil))
	require.NoError(t, err)

	assert.InDelta(t, domain.DefaultVolatilityMultiplier, p.VolatilityMultiplier, 1e-12)
	assert.InDelta(t, domain.DefaultBrokerCommissionFraction, p.BrokerCommissionFraction, 1e-12)
	assert.InDelta(t, domain.DefaultProfitMarginFraction, p.ProfitMarginFraction, 1e-12)
	assert.Equal(t, domain.DefaultAnalysisPeriodMonths, p.AnalysisPeriodMonths)
}

func TestLoadStrategyParameters_FromStore(t *testing.T) {
	store := memory.NewParameterStore(map[string]string{
		KeyVolatilityMultiplier:    "1,5",
		KeyBrokerCommissionPercent: "0.05",
		KeyAnalysisPeriodMonths:    " 6 ",
		KeyProfitMarginPercent:     "1",
	})

	p, err := LoadStrategyParameters(context.Background(), store)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, p.VolatilityMultiplier, 1e-12)
	assert.InDelta(t, 0.0005, p.BrokerCommissionFraction, 1e-12)
	assert.InDelta(t, 0.01, p.ProfitMarginFraction, 1e-12)
	assert.Equal(t, 6, p.AnalysisPeriodMonths)
}

func TestLoadStrategyParameters_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"not a number", map[string]string{KeyVolatilityMultiplier: "high"}},
		{"not an integer", map[string]string{KeyAnalysisPeriodMonths: "4.5"}},
		{"negative multiplier", map[string]string{KeyVolatilityMultiplier: "-1"}},
		{"zero months", map[string]string{KeyAnalysisPeriodMonths: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadStrategyParameters(context.Background(), memory.NewParameterStore(tt.values))
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
}

func TestLoadStrategyParameters_StoreUnavailable(t *testing.T) {
	_, err := LoadStrategyParameters(context.Background(), brokenStore{})
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.False(t, domain.IsSkippable(err))
}

func TestLoadAccountID(t *testing.T) {
	ctx := context.Background()

	_, err := LoadAccountID(ctx, memory.NewParameterStore(nil))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	id, err := LoadAccountID(ctx, memory.NewParameterStore(map[string]string{KeyAccountID: "2000123"}))
	require.NoError(t, err)
	assert.Equal(t, "2000123", id)

	_, err = LoadAccountID(ctx, brokenStore{})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}
