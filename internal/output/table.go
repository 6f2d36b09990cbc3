package output

import (
	"io"
	"strings"

	"github.com/rodaine/table"
)

// RenderTable renders a table to the writer for rich mode
func RenderTable(w io.Writer, columns []Column, rows []map[string]string) {
	if len(rows) == 0 {
		return
	}

	headers := make([]interface{}, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	tbl := table.New(headers...).WithWriter(w)

	for _, row := range rows {
		rowData := make([]interface{}, len(columns))
		for i, col := range columns {
			rowData[i] = TruncateString(row[col.Key], widthOrMax(col.Width))
		}
		tbl.AddRow(rowData...)
	}

	tbl.Print()
}

func widthOrMax(w int) int {
	if w <= 0 {
		return 1 << 20
	}
	return w
}

// TruncateString truncates a string to maxLen and adds "..." if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// PadString pads a string to the specified width
func PadString(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
