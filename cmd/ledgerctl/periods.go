package main

import (
	"fmt"
	"os"

	"github.com/sjperalta/transfer-ledger/internal/services"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(periodsCmd)
	periodsCmd.Flags().StringP("granularity", "g", services.GranularityMonth, "Bucket size (month, year)")
	periodsCmd.Flags().StringP("format", "f", "json", "Output format (json, csv, xlsx)")
	periodsCmd.Flags().StringP("out", "o", "", "Output file (default: stdout for json/csv, generated name for xlsx)")
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Report revenue, expenses and net per period",
	Args:  cobra.NoArgs,
	RunE:  runPeriods,
}

func runPeriods(cmd *cobra.Command, args []string) error {
	granularity, _ := cmd.Flags().GetString("granularity")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	a, err := openApp(cmd.Context(), true, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	periods, err := a.svcs.Reporting.GroupByPeriod(cmd.Context(), granularity)
	if err != nil {
		return err
	}

	var (
		data     []byte
		filename string
	)
	switch format {
	case "json":
		if out == "" {
			return printJSON(cmd.OutOrStdout(), periods)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		return printJSON(f, periods)
	case "csv":
		data, filename, err = a.svcs.Export.PeriodsCSV(granularity, periods)
		if err == nil && out == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
	case "xlsx":
		data, filename, err = a.svcs.Export.PeriodsXLSX(granularity, periods)
	default:
		return fmt.Errorf("invalid format %q (json, csv, xlsx)", format)
	}
	if err != nil {
		return err
	}

	if out == "" {
		out = filename
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
	return nil
}
