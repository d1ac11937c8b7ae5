// Package scraper mines terminal output for the usage summary an AI coding
// assistant prints when it finishes, for example:
//
//	Total cost: $1.23
//	Total tokens: 4,500 (in: 4.0K, out: 500)
//	Duration: 2m 15s
//
// Output is split into lines per session, escape sequences and control
// characters are stripped, and each line is folded into an Accumulator.
// Once cost and all token counts are known and either a duration or a blank
// line follows, a usage record is written to the Store and the accumulator
// starts over.
//
// The blank-line terminator can fire on an unrelated blank line that
// follows a cost and tokens pair without a duration.
package scraper
