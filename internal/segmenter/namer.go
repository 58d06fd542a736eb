package segmenter

import (
	"fmt"
	"strings"
)

// Placeholder is the sequence placeholder recognised in location templates.
const Placeholder = "%05d"

// SegmentName resolves template for the given sequence number by replacing
// every Placeholder with the zero-padded, width-5 decimal sequence. Numbers
// wider than five digits are written in full. A template without a
// placeholder is returned unchanged.
func SegmentName(template string, sequence uint64) string {
	return strings.ReplaceAll(template, Placeholder, fmt.Sprintf("%05d", sequence))
}

// HasPlaceholder reports whether template would produce distinct names per sequence.
func HasPlaceholder(template string) bool {
	return strings.Contains(template, Placeholder)
}
