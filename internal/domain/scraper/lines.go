package scraper

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// maxLineBytes bounds a buffered line. Longer lines are cut into pieces of
// this size at fixed stream offsets.
const maxLineBytes = 64 << 10

// lineBuffer splits a byte stream into lines independent of how the stream
// was chunked.
type lineBuffer struct {
	buf []byte
}

// feed appends data and returns the raw lines it completed, with the
// newline and any trailing carriage return removed.
func (b *lineBuffer) feed(data []byte) []string {
	b.buf = append(b.buf, data...)

	var lines []string
	off := 0
	for {
		rest := b.buf[off:]
		idx := bytes.IndexByte(rest, '\n')

		switch {
		case idx >= 0 && idx <= maxLineBytes:
			lines = append(lines, string(bytes.TrimSuffix(rest[:idx], []byte{'\r'})))
			off += idx + 1
		case len(rest) > maxLineBytes:
			lines = append(lines, string(rest[:maxLineBytes]))
			off += maxLineBytes
		default:
			b.buf = append(b.buf[:0], rest...)
			return lines
		}
	}
}

// cleanLine removes escape sequences, invalid UTF-8 and control characters
// other than tab.
func cleanLine(raw string) string {
	s := ansi.Strip(strings.ToValidUTF8(raw, "\uFFFD"))
	return strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
