package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the CRM for duplicates and anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, func(ctx context.Context, e *integrity.Engine) (*integrity.ScanResult, error) {
				return e.Scan(ctx)
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Show scan findings that mention a name, email or identifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runScan(cmd, opts, func(ctx context.Context, e *integrity.Engine) (*integrity.ScanResult, error) {
				return e.Search(ctx, query)
			})
		},
	}
}

func runScan(cmd *cobra.Command, opts *rootOptions, scan func(context.Context, *integrity.Engine) (*integrity.ScanResult, error)) error {
	engine, closeStore, err := openEngine(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := scan(cmd.Context(), engine)
	if err != nil {
		return err
	}

	if opts.format == "text" {
		writeScanText(cmd.OutOrStdout(), res)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func writeScanText(w io.Writer, res *integrity.ScanResult) {
	s := res.Summary
	fmt.Fprintf(w, "scanned %d customers, %d contacts\n", s.CustomersScanned, s.ContactsScanned)
	fmt.Fprintf(w, "duplicate groups: %d (%d errors, %d warnings), anomaly records: %d\n",
		s.DuplicateGroups, s.ErrorGroups, s.WarningGroups, s.AnomalyRecords)

	for _, g := range res.Duplicates {
		fmt.Fprintf(w, "%-7s %s %q\n", g.Severity, g.Type, g.Value)
		writeRecords(w, g.Records)
	}
	for _, a := range res.Anomalies {
		fmt.Fprintf(w, "%-7s %s\n", a.Severity, a.Type)
		writeRecords(w, a.Records)
	}
}

func writeRecords(w io.Writer, recs []integrity.ScanRecord) {
	for _, r := range recs {
		ident := r.BCCustomerNumber
		if r.EntityType == integrity.EntityContact {
			ident = r.Email
		}
		fmt.Fprintf(w, "        %s %s %s %s\n", r.EntityType, r.ID, r.Name, ident)
	}
}
