// Package ingest loads bond metadata and daily candles from CSV files into the stores.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bond-reversion-lab/internal/domain"
)

const dateLayout = "2006-01-02"

// Column names. Header order is free; extra columns are ignored.
var (
	bondColumns   = []string{"instrument_id", "ticker", "name", "currency", "maturity_date", "risk_level", "amortized", "collateral_eligibility", "avg_daily_volume"}
	candleColumns = []string{"instrument_id", "date", "open", "high", "low", "close", "volume"}
)

// ParseBonds reads bond rows. instrument_id is required; every other column may be empty.
func ParseBonds(r io.Reader) ([]domain.BondMetadata, error) {
	rows, err := readRows(r, bondColumns[:1])
	if err != nil {
		return nil, err
	}

	bonds := make([]domain.BondMetadata, 0, len(rows))
	for i, row := range rows {
		b, err := parseBond(row)
		if err != nil {
			return nil, fmt.Errorf("bonds line %d: %w", i+2, err)
		}
		bonds = append(bonds, b)
	}
	return bonds, nil
}

func parseBond(row map[string]string) (domain.BondMetadata, error) {
	b := domain.BondMetadata{
		InstrumentID: row["instrument_id"],
		Ticker:       row["ticker"],
		Name:         row["name"],
		Currency:     strings.ToLower(row["currency"]),
	}
	if b.InstrumentID == "" {
		return b, fmt.Errorf("%w: empty instrument_id", domain.ErrInvalidParameter)
	}

	if v := row["maturity_date"]; v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return b, fmt.Errorf("%w: maturity_date %q", domain.ErrInvalidParameter, v)
		}
		b.MaturityDate = &t
	}

	risk, err := domain.ParseRiskLevel(row["risk_level"])
	if err != nil {
		return b, err
	}
	b.RiskLevel = risk

	if v := row["amortized"]; v != "" {
		if b.Amortized, err = strconv.ParseBool(v); err != nil {
			return b, fmt.Errorf("%w: amortized %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := row["collateral_eligibility"]; v != "" {
		if b.CollateralEligibility, err = strconv.ParseFloat(v, 64); err != nil {
			return b, fmt.Errorf("%w: collateral_eligibility %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := row["avg_daily_volume"]; v != "" {
		if b.AvgDailyVolume, err = strconv.ParseInt(v, 10, 64); err != nil {
			return b, fmt.Errorf("%w: avg_daily_volume %q", domain.ErrInvalidParameter, v)
		}
	}
	return b, nil
}

// ParseCandles reads candle rows. All columns are required.
func ParseCandles(r io.Reader) ([]*domain.Candle, error) {
	rows, err := readRows(r, candleColumns)
	if err != nil {
		return nil, err
	}

	candles := make([]*domain.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("candles line %d: %w", i+2, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseCandle(row map[string]string) (*domain.Candle, error) {
	if row["instrument_id"] == "" {
		return nil, fmt.Errorf("%w: empty instrument_id", domain.ErrInvalidParameter)
	}
	date, err := time.Parse(dateLayout, row["date"])
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", domain.ErrInvalidParameter, row["date"])
	}

	c := &domain.Candle{InstrumentID: row["instrument_id"], Date: date}
	prices := []struct {
		col string
		dst *decimal.Decimal
	}{
		{"open", &c.Open},
		{"high", &c.High},
		{"low", &c.Low},
		{"close", &c.Close},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(row[p.col])
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", domain.ErrInvalidParameter, p.col, row[p.col])
		}
		*p.dst = v
	}
	if !c.Close.IsPositive() {
		return nil, fmt.Errorf("%w: close must be > 0, got %s", domain.ErrInvalidParameter, c.Close)
	}

	if c.Volume, err = strconv.ParseInt(row["volume"], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: volume %q", domain.ErrInvalidParameter, row["volume"])
	}
	return c, nil
}

// readRows maps every data row onto the header names, lowercased and trimmed.
func readRows(r io.Reader, required []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", domain.ErrInvalidParameter)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	for _, col := range required {
		if !contains(header, col) {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidParameter, col)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
