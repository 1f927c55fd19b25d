package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads or truncates a string to a fixed width.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}

// KeyValue renders rows as an aligned two-column block, one row per line.
// Keys are padded to the widest key.
func KeyValue(rows [][2]string) string {
	width := 0
	for _, row := range rows {
		width = max(width, runewidth.StringWidth(row[0]))
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(PadRight(row[0], width))
		b.WriteString("  ")
		b.WriteString(row[1])
		b.WriteByte('\n')
	}
	return b.String()
}
