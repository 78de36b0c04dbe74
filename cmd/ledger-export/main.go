// Command ledger-export copies the configured ledger to a file, or merges a
// file into it, without starting the web server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"dailyledger/internal/cli"
	"dailyledger/internal/config"
	"dailyledger/internal/core"
	"dailyledger/internal/log"
	"dailyledger/internal/records"
	"dailyledger/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup happens before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("ledger-export", flag.ContinueOnError)
	var (
		out    = fs.String("out", "-", "export destination, - for stdout")
		in     = fs.String("import", "", "merge this file into the ledger instead of exporting")
		format = fs.String("format", "", "csv, json or xlsx (default: from the file extension)")
		period = fs.String("period", "all", "day, week, month or all")
		from   = fs.String("from", "", "first date to export, YYYY-MM-DD")
		to     = fs.String("to", "", "last date to export, YYYY-MM-DD")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return 1
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	svc, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	}()
	if err := svc.Store().LoadErr(); err != nil {
		logger.Error("Ledger could not be loaded", log.FieldError, err)
		return 1
	}

	if *in != "" {
		err = importFile(ctx, svc, *in, *format)
	} else {
		err = exportFile(ctx, svc, *out, *format, *period, *from, *to)
	}
	if err != nil {
		logger.Error("ledger-export failed", log.FieldError, err)
		return 1
	}
	return 0
}

func pickFormat(flagValue, path string) (records.Format, error) {
	if flagValue != "" {
		return records.ParseFormat(flagValue)
	}
	return records.FormatFromPath(path), nil
}

func importFile(ctx context.Context, svc *services.LedgerService, path, format string) error {
	f, err := pickFormat(format, path)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := svc.Import(ctx, file, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d new and %d replaced records\n", res.Added, res.Replaced)
	return nil
}

func exportFile(ctx context.Context, svc *services.LedgerService, path, format, period, from, to string) (err error) {
	f, err := pickFormat(format, path)
	if err != nil {
		return err
	}
	sel, err := selection(period, from, to)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		file, ferr := os.Create(path)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", path, cerr)
			}
		}()
		w = file
	}

	n, err := svc.Export(ctx, w, f, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d records\n", n)
	return nil
}

func selection(period, from, to string) (services.Selection, error) {
	var sel services.Selection
	p, err := core.ParsePeriod(period)
	if err != nil {
		return sel, err
	}
	sel.Period = p
	if from != "" {
		if sel.From, err = core.ParseDate(from); err != nil {
			return sel, fmt.Errorf("from: %w", err)
		}
	}
	if to != "" {
		if sel.To, err = core.ParseDate(to); err != nil {
			return sel, fmt.Errorf("to: %w", err)
		}
	}
	if !sel.From.IsZero() && !sel.To.IsZero() && sel.To.Before(sel.From) {
		return sel, fmt.Errorf("to is before from")
	}
	return sel, nil
}
