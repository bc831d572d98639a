package main

import (
	"io"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"

	"bgRemover/worker/models"
)

func renderItems(out io.Writer, items []models.Item) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "Status", "Source", "Result", "Error"})

	done := 0
	for i, it := range items {
		result := "-"
		if it.HasResult() {
			result = units.HumanSize(float64(len(it.ResultBytes)))
			done++
		}
		t.AppendRow(table.Row{
			i + 1,
			it.DisplayName,
			string(it.Status),
			units.HumanSize(float64(len(it.SourceBytes))),
			result,
			it.Error,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", done, ""})
	t.Render()
}
