package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the company account with breakdowns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		snapshot, err := a.svcs.Reporting.CompanySnapshot(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snapshot)
	},
}
