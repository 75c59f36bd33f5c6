package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/output"
	"github.com/jackzampolin/tabula/internal/table"
)

var columnsSheet string

var columnsCmd = &cobra.Command{
	Use:   "columns FILE",
	Short: "List the columns of a table",
	Long: `List the column names and row count of an .xlsx or .csv file, to pick
values for 'tabula run --columns'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := table.Files{Sheet: columnsSheet}.Load(args[0])
		if err != nil {
			return err
		}
		return output.Print(struct {
			File    string   `json:"file" yaml:"file"`
			Rows    int      `json:"rows" yaml:"rows"`
			Columns []string `json:"columns" yaml:"columns"`
		}{
			File:    args[0],
			Rows:    t.Len(),
			Columns: t.Columns(),
		})
	},
}

func init() {
	columnsCmd.Flags().StringVar(&columnsSheet, "sheet", "", "worksheet to read (default: first)")
}
