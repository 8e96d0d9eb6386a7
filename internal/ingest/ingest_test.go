package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/storage/memory"
)

const bondsCSV = `instrument_id,ticker,name,currency,maturity_date,risk_level,amortized,collateral_eligibility,avg_daily_volume
BBG000000001,SU26238,OFZ 26238,RUB,2041-05-15,RISK_LEVEL_LOW,false,0.5,12000
BBG000000002,RU000A1,Corp 1,rub,,high,true,,
`

const candlesCSV = `date,instrument_id,open,high,low,close,volume
2024-01-02,BBG000000001,99.1,99.5,98.9,99.2,1500
2024-01-03,BBG000000001,99.2,99.6,99.0,99.4,1700
2024-01-02,BBG000000002,101,101.5,100.5,100.8,300
`

func TestParseBonds(t *testing.T) {
	bonds, err := ParseBonds(strings.NewReader(bondsCSV))
	require.NoError(t, err)
	require.Len(t, bonds, 2)

	b := bonds[0]
	assert.Equal(t, "BBG000000001", b.InstrumentID)
	assert.Equal(t, "rub", b.Currency)
	require.NotNil(t, b.MaturityDate)
	assert.Equal(t, time.Date(2041, 5, 15, 0, 0, 0, 0, time.UTC), *b.MaturityDate)
	assert.Equal(t, domain.RiskLevelLow, b.RiskLevel)
	assert.True(t, b.CollateralEligible())
	assert.Equal(t, int64(12000), b.AvgDailyVolume)

	assert.Nil(t, bonds[1].MaturityDate)
	assert.Equal(t, domain.RiskLevelHigh, bonds[1].RiskLevel)
	assert.True(t, bonds[1].Amortized)
}

func TestParseBonds_Invalid(t *testing.T) {
	_, err := ParseBonds(strings.NewReader("ticker\nX\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = ParseBonds(strings.NewReader("instrument_id,risk_level\nA,EXTREME\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = ParseBonds(strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestParseCandles(t *testing.T) {
	candles, err := ParseCandles(strings.NewReader(candlesCSV))
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, "BBG000000001", candles[0].InstrumentID)
	assert.True(t, candles[0].Close.Equal(decimal.RequireFromString("99.2")))
	assert.Equal(t, int64(1700), candles[1].Volume)

	_, err = ParseCandles(strings.NewReader("instrument_id,date,open,high,low,close,volume\nA,2024-01-02,1,1,1,0,1\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = ParseCandles(strings.NewReader("instrument_id,date,close\nA,2024-01-02,1\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestImporter_ImportFiles(t *testing.T) {
	dir := t.TempDir()
	bondsPath := filepath.Join(dir, "bonds.csv")
	candlesPath := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(bondsPath, []byte(bondsCSV), 0o600))
	require.NoError(t, os.WriteFile(candlesPath, []byte(candlesCSV), 0o600))

	ctx := context.Background()
	bondStore := memory.NewBondStore()
	candleStore := memory.NewCandleStore()
	im := NewImporter(bondStore, candleStore, nil)

	stats, err := im.ImportFiles(ctx, bondsPath, candlesPath)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Bonds:             2,
		Candles:           3,
		InstrumentsLoaded: 2,
		Instruments:       []string{"BBG000000001", "BBG000000002"},
	}, stats)

	listed, err := bondStore.ListBonds(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	got, err := candleStore.GetCandles(ctx, "BBG000000001",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Re-import skips already stored series.
	stats, err = im.ImportFiles(ctx, "", candlesPath)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DuplicateSeries)
	assert.Zero(t, stats.Candles)
}

func TestImporter_MissingStore(t *testing.T) {
	im := NewImporter(nil, nil, nil)
	assert.Error(t, im.ImportBonds(context.Background(), []domain.BondMetadata{{InstrumentID: "A"}}))
	_, err := im.ImportCandles(context.Background(), nil)
	assert.Error(t, err)
}
