package main

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jgoulah/dropcountr/pkg/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// formatGallons renders gallons with thousands separators and one decimal
func formatGallons(g float64) string {
	return humanize.CommafWithDigits(g, 1)
}

func dateLayout(p models.Period) string {
	if p == models.PeriodHour {
		return "2006-01-02 15:04"
	}
	return "2006-01-02"
}

func leakMark(leaking bool) string {
	if leaking {
		return "LEAK"
	}
	return ""
}
