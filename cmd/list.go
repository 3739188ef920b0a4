package main

import (
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/pricewatch/internal/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked items with their latest prices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "list")
		}
		if len(items) == 0 {
			cmd.Println("No items tracked. Add one with: pricewatch add <url>")
			return nil
		}

		ids := make([]string, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		p := message.NewPrinter(language.English)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		p.Fprintln(w, "NAME\tCURRENT\tPREVIOUS\tLAST CHECKED\tURL")
		for _, id := range ids {
			item := items[id]
			p.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				item.Name,
				renderPrice(p, item.CurrentPrice),
				renderPrice(p, item.PreviousPrice),
				renderChecked(item),
				item.URL,
			)
		}
		return w.Flush()
	},
}

func renderPrice(p *message.Printer, v *float64) string {
	if v == nil {
		return "-"
	}
	return p.Sprintf("%.2f", *v)
}

func renderChecked(item *model.TrackedItem) string {
	if item.LastChecked == nil {
		return "never"
	}
	return item.LastChecked.Local().Format("2006-01-02 15:04")
}

func init() {
	rootCmd.AddCommand(listCmd)
}
