package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricewatch/internal/model"
)

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Start tracking a product URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		item, err := model.NewTrackedItem(args[0], name)
		if err != nil {
			return err
		}

		items, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "add")
		}
		if _, exists := items[item.ID]; exists {
			return eris.Errorf("add: already tracking %s", item.ID)
		}

		items[item.ID] = item
		if err := st.Save(ctx, items); err != nil {
			return eris.Wrap(err, "add")
		}

		fmt.Printf("Tracking %q (%s)\n", item.Name, item.URL)
		return nil
	},
}

func init() {
	addCmd.Flags().String("name", "", "display name (default: derived from the URL host)")
	rootCmd.AddCommand(addCmd)
}
