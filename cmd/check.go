package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/pricewatch/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one check cycle over all tracked items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		checker, st, err := buildChecker(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		events, err := checker.Run(ctx)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		if len(events) == 0 {
			cmd.Println("No changes detected.")
			return nil
		}
		for _, e := range events {
			printEvent(e)
		}
		return nil
	},
}

func printEvent(e model.ChangeEvent) {
	switch e.Kind {
	case model.ChangeURL:
		fmt.Printf("[url]   %s moved: %s -> %s\n", e.ItemName, e.OldValue(), e.NewValue())
	default:
		fmt.Printf("[price] %s: %s -> %s\n", e.ItemName, e.OldValue(), e.NewValue())
	}
}

func init() {
	checkCmd.Flags().Bool("json", false, "emit events as JSON")
	rootCmd.AddCommand(checkCmd)
}
