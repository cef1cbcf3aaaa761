package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one ingestion tick and print its run record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBoard(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, tickErr := env.Loop.Tick(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
		return tickErr
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
