package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export tracked items (and price history, if available) to a workbook",
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
			return eris.Wrap(err, "export")
		}

		recorder, _ := st.(store.HistoryRecorder)
		f, err := buildWorkbook(ctx, items, recorder)
		if err != nil {
			return err
		}
		if err := f.Save(args[0]); err != nil {
			return eris.Wrapf(err, "export: save %s", args[0])
		}

		fmt.Printf("Exported %d items to %s\n", len(items), args[0])
		return nil
	},
}

// buildWorkbook lays out an Items sheet and, when the backend records
// history, one History sheet with every stored observation.
func buildWorkbook(ctx context.Context, items map[string]*model.TrackedItem, recorder store.HistoryRecorder) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Items")
	if err != nil {
		return nil, eris.Wrap(err, "export: add items sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Name", "URL", "Previous URL", "Current Price", "Previous Price", "Last Checked"} {
		header.AddCell().SetString(h)
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		item := items[id]
		row := sheet.AddRow()
		row.AddCell().SetString(item.Name)
		row.AddCell().SetString(item.URL)
		row.AddCell().SetString(item.PreviousURL)
		addPriceCell(row, item.CurrentPrice)
		addPriceCell(row, item.PreviousPrice)
		if item.LastChecked != nil {
			row.AddCell().SetString(item.LastChecked.UTC().Format("2006-01-02 15:04:05"))
		} else {
			row.AddCell().SetString("")
		}
	}

	if recorder == nil {
		return f, nil
	}

	hist, err := f.AddSheet("History")
	if err != nil {
		return nil, eris.Wrap(err, "export: add history sheet")
	}
	histHeader := hist.AddRow()
	for _, h := range []string{"Item", "Price", "Observed At"} {
		histHeader.AddCell().SetString(h)
	}
	for _, id := range ids {
		obs, err := recorder.History(ctx, id, 0)
		if err != nil {
			return nil, eris.Wrapf(err, "export: history for %s", id)
		}
		for _, o := range obs {
			row := hist.AddRow()
			row.AddCell().SetString(items[id].Name)
			row.AddCell().SetFloat(o.Price)
			row.AddCell().SetString(o.ObservedAt.UTC().Format("2006-01-02 15:04:05"))
		}
	}
	return f, nil
}

func addPriceCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloat(*v)
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
