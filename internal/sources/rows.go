package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"andamento/internal/core"
)

// Column order shared by the CSV seed file, the importer and the Sheets tab.
const (
	ColDate = iota
	ColType
	ColAmount
	ColAccount
	ColDescription
	ColCategory

	minColumns = ColAmount + 1
)

// Header is the canonical header row.
var Header = []string{"date", "type", "amount", "account", "description", "category"}

// RowError ties a parse failure to its 1-based line number.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

var errShortRow = errors.New("row has too few columns")

// ParseRow decodes one row. Parsing is lenient: an unparseable date leaves
// Date zero, an unknown type is carried verbatim, and signed amounts are
// kept, so the report engine can flag the record as malformed instead of
// it vanishing here. Only a missing or non-numeric amount is an error.
func ParseRow(fields []string, loc *time.Location) (core.Transaction, error) {
	if len(fields) < minColumns {
		return core.Transaction{}, errShortRow
	}

	amountText := strings.ReplaceAll(strings.TrimSpace(fields[ColAmount]), ",", ".")
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, fields[ColAmount])
	}

	tx := core.Transaction{
		Amount:      amount,
		AccountID:   field(fields, ColAccount),
		Description: field(fields, ColDescription),
		Category:    field(fields, ColCategory),
	}
	if date, err := core.ParseDateIn(fields[ColDate], loc); err == nil {
		tx.Date = date
	}
	if typ, err := core.ParseTransactionType(fields[ColType]); err == nil {
		tx.Type = typ
	} else {
		tx.Type = core.TransactionType(strings.TrimSpace(fields[ColType]))
	}
	return tx, nil
}

// FormatRow is the inverse of ParseRow for well-formed transactions. The
// amount keeps its full precision and the date its sub-second part.
func FormatRow(tx core.Transaction) []string {
	return []string{
		tx.Date.Format(time.RFC3339Nano),
		tx.Type.String(),
		tx.Amount.String(),
		tx.AccountID,
		tx.Description,
		tx.Category,
	}
}

// ReadCSV parses a transactions CSV. A header row matching Header is
// skipped. Rows that cannot be decoded are returned as RowErrors and left
// out; the remaining rows are still returned.
func ReadCSV(r io.Reader, loc *time.Location) ([]core.Transaction, []*RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		txs     []core.Transaction
		rowErrs []*RowError
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return txs, rowErrs, fmt.Errorf("read csv: %w", err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		if isBlank(rec) {
			continue
		}
		tx, err := ParseRow(rec, loc)
		if err != nil {
			rowErrs = append(rowErrs, &RowError{Line: line, Err: err})
			continue
		}
		txs = append(txs, tx)
	}
	return txs, rowErrs, nil
}

// WriteCSV writes transactions with the canonical header.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := cw.Write(FormatRow(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return strings.TrimSpace(fields[i])
	}
	return ""
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), Header[0])
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
