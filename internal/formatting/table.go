package formatting

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxValueWidth truncates long values such as tokens in the table view.
const maxValueWidth = 100

// Color names a highlight for table values.
type Color int

const (
	ColorNone Color = iota
	ColorGood
	ColorWarn
	ColorBad
	ColorMuted
)

func (c Color) sprint(s string) string {
	switch c {
	case ColorGood:
		return text.FgGreen.Sprint(s)
	case ColorWarn:
		return text.FgYellow.Sprint(s)
	case ColorBad:
		return text.FgRed.Sprint(s)
	case ColorMuted:
		return text.FgHiBlack.Sprint(s)
	default:
		return s
	}
}

type tableFormatter struct{}

func (tableFormatter) Format(w io.Writer, fields []Field, _ interface{}) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("KEY"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	for _, f := range fields {
		t.AppendRow(table.Row{
			text.FgHiCyan.Sprint(f.Key),
			f.Color.sprint(Truncate(f.Value, maxValueWidth)),
		})
	}

	t.Render()
	return nil
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
