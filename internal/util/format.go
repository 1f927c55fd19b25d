package util

import (
	"fmt"
	"strings"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count in binary units with up to three
// truncated decimals, e.g. 1536 -> "1.5 KB".
func FormatSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}

	unit := int64(1)
	idx := 0
	for idx < len(sizeUnits)-1 && size >= unit*1024 {
		unit *= 1024
		idx++
	}

	whole := size / unit
	rem := size % unit
	if rem == 0 {
		return fmt.Sprintf("%d %s", whole, sizeUnits[idx])
	}

	frac := rem * 1000 / unit
	s := strings.TrimRight(fmt.Sprintf("%d.%03d", whole, frac), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s + " " + sizeUnits[idx]
}
