package scoring

import (
	"strings"
	"time"

	"bond-reversion-lab/internal/domain"
)

// Filter returns the bonds matching criteria as of today.
// Input order is preserved and the input slice is not modified.
// Bonds without a maturity date never match.
func Filter(bonds []domain.BondMetadata, criteria domain.FilterCriteria, today time.Time) []domain.BondMetadata {
	day := domain.DateOf(today)
	minMaturity := day.AddDate(0, 0, criteria.MinDaysToMaturity)
	maxMaturity := day.AddDate(0, criteria.MaxMonthsToMaturity, 0)

	result := make([]domain.BondMetadata, 0, len(bonds))
	for i := range bonds {
		if matches(&bonds[i], criteria, minMaturity, maxMaturity) {
			result = append(result, bonds[i])
		}
	}
	return result
}

func matches(b *domain.BondMetadata, c domain.FilterCriteria, minMaturity, maxMaturity time.Time) bool {
	if c.Currency != "" && !strings.EqualFold(b.Currency, c.Currency) {
		return false
	}
	if c.ExcludeAmortized && b.Amortized {
		return false
	}
	if b.MaturityDate == nil {
		return false
	}
	maturity := domain.DateOf(*b.MaturityDate)
	if maturity.Before(minMaturity) || maturity.After(maxMaturity) {
		return false
	}
	if c.RequireCollateralEligible && !b.CollateralEligible() {
		return false
	}
	if c.ExcludeHighRisk && b.RiskLevel == domain.RiskLevelHigh {
		return false
	}
	return true
}

// FilterByVolume drops bonds whose metadata average daily volume is below min.
// A non-positive min keeps everything.
func FilterByVolume(bonds []domain.BondMetadata, min int64) []domain.BondMetadata {
	if min <= 0 {
		return bonds
	}
	result := make([]domain.BondMetadata, 0, len(bonds))
	for _, b := range bonds {
		if b.AvgDailyVolume >= min {
			result = append(result, b)
		}
	}
	return result
}
