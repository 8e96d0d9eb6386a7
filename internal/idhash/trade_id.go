package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|instrument_id|buy_date)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	instrumentID string,
	buyDate time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s",
		runID,
		instrumentID,
		buyDate.UTC().Format("2006-01-02"),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic backtest run id from its inputs.
// Formula: SHA256(start|end|k|margin|commission|months|instrument_ids...)
// Returns the first 16 hex characters.
func ComputeRunID(
	start, end time.Time,
	volatilityMultiplier, profitMargin, commission float64,
	analysisPeriodMonths int,
	instrumentIDs []string,
) string {
	data := fmt.Sprintf("%s|%s|%g|%g|%g|%d",
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
		volatilityMultiplier,
		profitMargin,
		commission,
		analysisPeriodMonths,
	)
	for _, id := range instrumentIDs {
		data += "|" + id
	}

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
