package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Stop tracking a product URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "remove")
		}

		item, ok := items[args[0]]
		if !ok {
			return eris.Errorf("remove: not tracking %s", args[0])
		}

		delete(items, args[0])
		if err := st.Save(ctx, items); err != nil {
			return eris.Wrap(err, "remove")
		}

		fmt.Printf("Stopped tracking %q\n", item.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
