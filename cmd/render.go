package main

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"press_archive/internal/app"
	"press_archive/internal/models"
)

func renderSkips(w io.Writer, skips []models.Skip) {
	if len(skips) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Skipped " + strconv.Itoa(len(skips)))
	t.AppendHeader(table.Row{"Ticker", "Item", "Reason"})
	for _, s := range skips {
		t.AppendRow(table.Row{s.Ticker, s.Item, s.Err.Error()})
	}
	t.Render()
}

func renderReport(w io.Writer, r *app.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(r.Path)
	t.AppendHeader(table.Row{"Field", "Value", "Problem"})
	t.AppendRows([]table.Row{
		{"ID", r.ID, r.IDErr},
		{"Title", r.Title, r.TitleErr},
		{"Date", r.Date, r.DateErr},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Readable title", r.ReadableTitle, ""},
		{"Excerpt", r.Excerpt, ""},
		{"Text length", r.TextLength, ""},
	})
	t.Render()
}
