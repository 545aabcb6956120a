package google

import (
	"fmt"
	"strings"
	"time"

	"andamento/internal/core"
	"andamento/internal/sources"
)

// parseTransactionRows converts a values matrix as returned by the Sheets
// API. A leading header row is skipped and empty rows are ignored.
func parseTransactionRows(values [][]interface{}, accountID string, loc *time.Location) ([]core.Transaction, []*sources.RowError) {
	var (
		out     []core.Transaction
		rowErrs []*sources.RowError
	)
	for i, raw := range values {
		cols := toStrings(raw)
		if i == 0 && len(cols) > 0 && strings.EqualFold(strings.TrimSpace(cols[0]), sources.Header[0]) {
			continue
		}
		if blank(cols) {
			continue
		}
		tx, err := sources.ParseRow(cols, loc)
		if err != nil {
			rowErrs = append(rowErrs, &sources.RowError{Line: i + 1, Err: err})
			continue
		}
		if accountID != "" && tx.AccountID != accountID {
			continue
		}
		out = append(out, tx)
	}
	return out, rowErrs
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func blank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
