// Command andamento-import appends transactions from a CSV file or a
// receipt-scanner JSON payload to the configured backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"andamento/internal/amqp"
	"andamento/internal/backend"
	"andamento/internal/cli"
	"andamento/internal/config"
	applog "andamento/internal/log"
	"andamento/internal/services"
)

type options struct {
	file    string
	receipt string
	account string
	dryRun  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "CSV of transactions to import (- for stdin)")
	flag.StringVar(&opts.receipt, "receipt", "", "receipt-scanner JSON payload to import as an expense (- for stdin)")
	flag.StringVar(&opts.account, "account", "", "account for the receipt, and for CSV rows without one")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate input without writing")
	flag.Parse()

	if (opts.file == "") == (opts.receipt == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -receipt is required")
		flag.Usage()
		os.Exit(2)
	}
	if opts.receipt != "" && opts.account == "" {
		fmt.Fprintln(os.Stderr, "-account is required with -receipt")
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentImport)

	if err := run(cfg, logger, opts); err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *applog.Logger, opts options) error {
	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(opts.file + opts.receipt)
	if err != nil {
		return err
	}
	defer closeIn()

	if opts.dryRun {
		return dryRun(ctx, logger, in, opts, backendCfg)
	}

	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("AMQP unavailable, running servers will see new data after their cache TTL", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}
	svc := services.NewTransactionService(res.Source, publisher, nil, backendCfg.Location)

	if opts.receipt != "" {
		id, err := importReceipt(ctx, in, opts.account, svc)
		if err != nil {
			return err
		}
		logger.Info("Receipt imported", applog.FieldAccountID, opts.account, "id", id)
		return nil
	}

	result, rowErrs, err := importCSV(ctx, in, backendCfg.Location, opts.account, svc)
	if err != nil {
		return err
	}
	report(logger, result, rowErrs)
	if result.Incomplete {
		return fmt.Errorf("import interrupted after %d transactions", result.Appended)
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func report(logger *applog.Logger, result services.ImportResult, rowErrs []error) {
	for _, err := range rowErrs {
		logger.Warn("Skipped malformed row", "error", err)
	}
	for _, err := range result.Failed {
		logger.Warn("Skipped invalid transaction", "error", err)
	}
	for account, n := range result.ByAccount {
		logger.Info("Imported transactions", applog.FieldAccountID, account, applog.FieldTxCount, n)
	}
	logger.Info("Import finished",
		"appended", result.Appended,
		"malformed", len(rowErrs),
		"invalid", len(result.Failed))
}
