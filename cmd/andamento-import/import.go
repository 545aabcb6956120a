package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"andamento/internal/backend"
	"andamento/internal/core"
	applog "andamento/internal/log"
	"andamento/internal/services"
	"andamento/internal/sources"
)

// recorder is the part of services.TransactionService the importer uses.
type recorder interface {
	RecordBatch(ctx context.Context, txs []core.Transaction) services.ImportResult
	RecordReceipt(ctx context.Context, accountID string, scan core.ReceiptScan) (string, error)
}

// importCSV reads transactions and records them. Rows without an account
// take defaultAccount. Rows that cannot be decoded at all are returned as
// errors next to the result; rows that decode but fail validation end up
// in result.Failed.
func importCSV(ctx context.Context, r io.Reader, loc *time.Location, defaultAccount string, rec recorder) (services.ImportResult, []error, error) {
	txs, rowErrs, err := sources.ReadCSV(r, loc)
	if err != nil {
		return services.ImportResult{}, nil, fmt.Errorf("read csv: %w", err)
	}
	for i := range txs {
		if txs[i].AccountID == "" {
			txs[i].AccountID = defaultAccount
		}
	}
	return rec.RecordBatch(ctx, txs), rowErrors(rowErrs), nil
}

func importReceipt(ctx context.Context, r io.Reader, accountID string, rec recorder) (string, error) {
	scan, err := decodeReceipt(r)
	if err != nil {
		return "", err
	}
	return rec.RecordReceipt(ctx, accountID, scan)
}

func decodeReceipt(r io.Reader) (core.ReceiptScan, error) {
	var scan core.ReceiptScan
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&scan); err != nil {
		return core.ReceiptScan{}, fmt.Errorf("decode receipt: %w", err)
	}
	return scan, nil
}

func rowErrors(in []*sources.RowError) []error {
	out := make([]error, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}

// dryRun validates the input without touching the backend.
func dryRun(ctx context.Context, logger *applog.Logger, r io.Reader, opts options, cfg backend.Config) error {
	if opts.receipt != "" {
		scan, err := decodeReceipt(r)
		if err != nil {
			return err
		}
		if _, err := scan.ToTransaction(opts.account, cfg.Location); err != nil {
			return fmt.Errorf("invalid receipt: %w", err)
		}
		logger.InfoContext(ctx, "Receipt is valid", applog.FieldAccountID, opts.account)
		return nil
	}

	result, rowErrs, err := importCSV(ctx, r, cfg.Location, opts.account, validateOnly{loc: cfg.Location})
	if err != nil {
		return err
	}
	report(logger, result, rowErrs)
	return nil
}

// validateOnly counts what would be appended.
type validateOnly struct {
	loc *time.Location
}

func (validateOnly) RecordBatch(ctx context.Context, txs []core.Transaction) services.ImportResult {
	res := services.ImportResult{ByAccount: map[string]int{}}
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			res.Failed = append(res.Failed, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		res.Appended++
		res.ByAccount[tx.AccountID]++
	}
	return res
}

func (v validateOnly) RecordReceipt(_ context.Context, accountID string, scan core.ReceiptScan) (string, error) {
	if _, err := scan.ToTransaction(accountID, v.loc); err != nil {
		return "", err
	}
	return "", nil
}
