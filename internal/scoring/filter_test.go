package scoring

import (
	"testing"
	"time"

	"bond-reversion-lab/internal/domain"
)

var today = time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)

func maturity(days int) *time.Time {
	d := domain.DateOf(today).AddDate(0, 0, days)
	return &d
}

func eligibleBond(id string) domain.BondMetadata {
	return domain.BondMetadata{
		InstrumentID:          id,
		Currency:              "rub",
		MaturityDate:          maturity(90),
		RiskLevel:             domain.RiskLevelLow,
		CollateralEligibility: 0.5,
		AvgDailyVolume:        1000,
	}
}

func TestFilter_MaturityBound(t *testing.T) {
	criteria := domain.FilterCriteria{MinDaysToMaturity: 30, MaxMonthsToMaturity: 6}

	var bonds []domain.BondMetadata
	for days := -10; days <= 400; days++ {
		b := eligibleBond("b")
		b.MaturityDate = maturity(days)
		bonds = append(bonds, b)
	}

	got := Filter(bonds, criteria, today)
	if len(got) == 0 {
		t.Fatal("expected some bonds to pass")
	}

	lower := domain.DateOf(today).AddDate(0, 0, 30)
	upper := domain.DateOf(today).AddDate(0, 6, 0)
	for _, b := range got {
		m := *b.MaturityDate
		if m.Before(lower) || m.After(upper) {
			t.Errorf("maturity %s outside [%s, %s]", m.Format("2006-01-02"), lower.Format("2006-01-02"), upper.Format("2006-01-02"))
		}
	}

	// Both bounds are inclusive.
	wantCount := int(upper.Sub(lower).Hours()/24) + 1
	if len(got) != wantCount {
		t.Errorf("expected %d bonds, got %d", wantCount, len(got))
	}
}

func TestFilter_ExcludeAmortized(t *testing.T) {
	b := eligibleBond("amortized")
	b.Amortized = true

	criteria := domain.FilterCriteria{ExcludeAmortized: true, MaxMonthsToMaturity: 12}
	if got := Filter([]domain.BondMetadata{b}, criteria, today); len(got) != 0 {
		t.Errorf("amortized bond must be excluded, got %d", len(got))
	}

	criteria.ExcludeAmortized = false
	if got := Filter([]domain.BondMetadata{b}, criteria, today); len(got) != 1 {
		t.Errorf("amortized bond must pass when not excluded, got %d", len(got))
	}
}

func TestFilter_NoMaturityDropped(t *testing.T) {
	b := eligibleBond("perpetual")
	b.MaturityDate = nil

	got := Filter([]domain.BondMetadata{b}, domain.FilterCriteria{MaxMonthsToMaturity: 1200}, today)
	if len(got) != 0 {
		t.Errorf("bond without maturity must be dropped, got %d", len(got))
	}
}

func TestFilter_Criteria(t *testing.T) {
	usd := eligibleBond("usd")
	usd.Currency = "usd"
	noCollateral := eligibleBond("no-collateral")
	noCollateral.CollateralEligibility = 0
	high := eligibleBond("high")
	high.RiskLevel = domain.RiskLevelHigh
	upper := eligibleBond("upper")
	upper.Currency = "RUB"

	bonds := []domain.BondMetadata{usd, noCollateral, high, upper, eligibleBond("ok")}
	criteria := domain.FilterCriteria{
		Currency:                  "rub",
		MaxMonthsToMaturity:       12,
		RequireCollateralEligible: true,
		ExcludeHighRisk:           true,
	}

	got := Filter(bonds, criteria, today)
	if len(got) != 2 {
		t.Fatalf("expected 2 bonds, got %d", len(got))
	}
	if got[0].InstrumentID != "upper" || got[1].InstrumentID != "ok" {
		t.Errorf("unexpected result order: %s, %s", got[0].InstrumentID, got[1].InstrumentID)
	}
}

func TestFilter_ZeroMaxMonthsIsLiteral(t *testing.T) {
	b := eligibleBond("b")
	got := Filter([]domain.BondMetadata{b}, domain.FilterCriteria{}, today)
	if len(got) != 0 {
		t.Errorf("max months 0 admits only bonds maturing today, got %d", len(got))
	}

	b.MaturityDate = maturity(0)
	got = Filter([]domain.BondMetadata{b}, domain.FilterCriteria{}, today)
	if len(got) != 1 {
		t.Errorf("bond maturing today must pass, got %d", len(got))
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	bonds := []domain.BondMetadata{eligibleBond("a"), eligibleBond("b")}
	bonds[0].Amortized = true

	_ = Filter(bonds, domain.FilterCriteria{ExcludeAmortized: true, MaxMonthsToMaturity: 12}, today)

	if bonds[0].InstrumentID != "a" || bonds[1].InstrumentID != "b" || len(bonds) != 2 {
		t.Error("input slice was modified")
	}
}

func TestFilterByVolume(t *testing.T) {
	low := eligibleBond("low")
	low.AvgDailyVolume = 10
	high := eligibleBond("high")
	high.AvgDailyVolume = 5000

	got := FilterByVolume([]domain.BondMetadata{low, high}, 100)
	if len(got) != 1 || got[0].InstrumentID != "high" {
		t.Errorf("expected only high-volume bond, got %v", got)
	}

	if got := FilterByVolume([]domain.BondMetadata{low, high}, 0); len(got) != 2 {
		t.Errorf("zero minimum must keep all bonds, got %d", len(got))
	}
}
