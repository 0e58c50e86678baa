package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/workbook"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.xlsx>",
		Short: "Validate an import workbook against the CRM",
		Long: `validate reads the Kunder, Kontakter and Betalare sheets of an .xlsx
workbook and checks every row against the live CRM. Nothing is written.

The exit status is 0 when the import may proceed, 2 when at least one
error blocks it and 1 when validation itself failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := workbook.ParseFile(args[0])
			if err != nil {
				return err
			}

			engine, closeStore, err := openEngine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := engine.ValidateImport(cmd.Context(), batch)
			if err != nil {
				return err
			}

			if opts.format == "text" {
				writeValidationText(cmd.OutOrStdout(), res)
			} else if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}

			if !res.CanImport {
				return &exitError{code: exitBlocked}
			}
			return nil
		},
	}
}

func writeValidationText(w io.Writer, res *integrity.ValidationResult) {
	fmt.Fprint(w, res.Summary())
	for _, s := range []struct {
		name string
		res  integrity.SheetValidationResult
	}{
		{"Kunder", res.Customers},
		{"Kontakter", res.Contacts},
		{"Betalare", res.Payers},
	} {
		for _, is := range s.res.Issues {
			row := "-"
			if is.RowNumber > 0 {
				row = fmt.Sprintf("rad %d", is.RowNumber)
			}
			fmt.Fprintf(w, "%-7s %s %s [%s] %s: %s\n", is.Severity, s.name, row, is.EntityKey, is.Field, is.Message)
		}
	}
}
