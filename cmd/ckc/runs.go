package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ckc/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, log, err := setup()
		if err != nil {
			return err
		}
		db, err := storage.Open(rootFlag, log)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs stored")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d entities\n",
				r.ID, r.CreatedAt.Format(time.RFC3339), r.Entities)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
