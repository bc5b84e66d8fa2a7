package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tarisrizki/provisioning-telkom/internal/columns"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/parser"
)

func newCheckCmd() *cobra.Command {
	var aliasesPath string
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a file and show how its headers resolve, without touching the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aliases := columns.DefaultAliasTable()
			if aliasesPath != "" {
				var err error
				if aliases, err = columns.LoadAliasTable(aliasesPath); err != nil {
					return err
				}
			}
			return runCheck(cmd.OutOrStdout(), args[0], aliases)
		},
	}
	cmd.Flags().StringVar(&aliasesPath, "aliases", os.Getenv("COLUMN_ALIASES_PATH"), "YAML alias table replacing the built-in one")
	return cmd
}

func runCheck(out io.Writer, path string, aliases columns.AliasTable) error {
	table, err := parser.ParseFile(path)
	if err != nil {
		return err
	}
	mapping := columns.Resolve(table.Headers, aliases)

	fmt.Fprintf(out, "%s: %d rows, %d columns\n", path, table.RowCount(), table.ColumnCount())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tHEADER")
	for _, field := range aliases.Fields() {
		header := "-"
		if idx := mapping.Index(field); idx >= 0 {
			header = table.Headers[idx]
		}
		fmt.Fprintf(tw, "%s\t%s\n", field, header)
	}
	tw.Flush()

	if missing := columns.Missing(mapping, columns.RequiredFields); len(missing) > 0 {
		return &models.ValidationError{
			Kind:    models.MissingColumns,
			Message: "required columns not found",
			Missing: missing,
		}
	}
	fmt.Fprintln(out, "all required columns found: "+strings.Join(columns.RequiredFields, ", "))
	return nil
}
