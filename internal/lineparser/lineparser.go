// Package lineparser turns a raw line into named
// columns via a user-supplied pattern, with a priority-ordered
// repository that resolves which parser applies to a given file.
package lineparser

// ColumnFormat describes one output column. Stable for a parser's
// lifetime.
type ColumnFormat struct {
	Name     string
	Group    int
	Indexed  bool
	Autosize bool
}

// ParserContext is per-worker scratch state:
// a LineParser may reuse it across ParseLine calls on the same
// goroutine to avoid reallocating intermediate buffers. It is not safe
// for concurrent use; NewContext produces one per worker.
type ParserContext struct {
	scratch []string
}

func newParserContext(columns int) *ParserContext {
	return &ParserContext{scratch: make([]string, columns)}
}

// LineParser is the capability set every parser implementation
// provides.
type LineParser interface {
	// ParseLine fills columns with one substring per ColumnFormat and
	// reports whether line matched. ctx must come from NewContext and be
	// used by only one goroutine at a time.
	ParseLine(line string, columns []string, ctx *ParserContext) bool

	// ColumnFormats returns the parser's column metadata, invariant for
	// its lifetime.
	ColumnFormats() []ColumnFormat

	// IsMatch classifies a file from a handful of sample lines.
	IsMatch(sampleLines []string, fileName string) bool

	// Name identifies the parser, e.g. for resolveByName and for log
	// messages.
	Name() string

	// RGB returns an optional foreground color for a parsed row.
	RGB(columns []string) (rgb uint32, ok bool)

	// NewContext produces a fresh per-worker scratch context.
	NewContext() *ParserContext
}
