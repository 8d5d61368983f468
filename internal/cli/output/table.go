package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table writes rows under a header. Text mode draws a box, other modes emit a
// markdown table.
func (r *Renderer) Table(header []string, rows [][]any, footer ...any) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	h := make(table.Row, len(header))
	for i, c := range header {
		h[i] = c
	}
	t.AppendHeader(h)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}
	if len(footer) > 0 {
		t.AppendFooter(table.Row(footer))
	}

	if r.EffectiveMode() == ModeText {
		t.SetStyle(table.StyleLight)
		t.Style().Format.Header = text.FormatDefault
		t.Style().Format.Footer = text.FormatDefault
		t.Render()
		return
	}
	t.RenderMarkdown()
}
