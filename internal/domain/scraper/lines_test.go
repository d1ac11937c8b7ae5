package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// streamBytes favours newlines, carriage returns, escape bytes and the
// leading byte of multi-byte runes.
var streamBytes = []byte("ab $1.\r\n\n\x1b[m;\xe2\x82\xac\t\x07")

func feedChunked(t *rapid.T, stream []byte) []string {
	b := &lineBuffer{}
	lines := []string{}
	rest := stream
	for len(rest) > 0 {
		n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
		lines = append(lines, b.feed(rest[:n])...)
		rest = rest[n:]
	}
	return lines
}

func TestLineSplittingIgnoresChunkBoundaries(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stream := rapid.SliceOfN(rapid.SampledFrom(streamBytes), 0, 512).Draw(t, "stream")

		whole := append([]string{}, (&lineBuffer{}).feed(stream)...)
		chunked := feedChunked(t, stream)

		require.Equal(t, whole, chunked)
	})
}

func TestLineBufferKeepsPartialLine(t *testing.T) {
	b := &lineBuffer{}

	assert.Empty(t, b.feed([]byte("Total cost: $1.2")))
	assert.Equal(t, []string{"Total cost: $1.23"}, b.feed([]byte("3\r\nnext")))
	assert.Equal(t, []string{"next", ""}, b.feed([]byte("\n\n")))
}

func TestLineBufferCapsLongLines(t *testing.T) {
	b := &lineBuffer{}

	long := strings.Repeat("a", maxLineBytes+10)
	lines := b.feed([]byte(long + "\n"))

	require.Len(t, lines, 2)
	assert.Len(t, lines[0], maxLineBytes)
	assert.Equal(t, strings.Repeat("a", 10), lines[1])
	assert.Empty(t, b.buf)
}

func TestCleanLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Total cost: $1.23", want: "Total cost: $1.23"},
		{name: "sgr", in: "\x1b[1mTotal cost:\x1b[0m \x1b[32m$1.23\x1b[0m", want: "Total cost: $1.23"},
		{name: "osc title", in: "\x1b]0;claude\x07Duration: 5s", want: "Duration: 5s"},
		{name: "bell and backspace", in: "Dur\x07ation:\x08 5s", want: "Duration: 5s"},
		{name: "tab kept", in: "a\tb", want: "a\tb"},
		{name: "invalid utf8", in: "a\xffb", want: "a\uFFFDb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanLine(tt.in))
		})
	}
}

func TestCleanLineHasNoControlBytes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.SampledFrom(streamBytes), 0, 128).Draw(t, "raw")

		for _, r := range cleanLine(string(raw)) {
			if r == '\t' {
				continue
			}
			if r < 0x20 || r == 0x7f {
				t.Fatalf("control rune %q left in %q", r, cleanLine(string(raw)))
			}
		}
	})
}
