package lineparser

// DefaultParser is the built-in fallback: a single "Message"
// column equal to the raw line, never indexed. The repository falls
// back to it when no registered parser's IsMatch accepts a file.
type DefaultParser struct{}

var defaultColumns = []ColumnFormat{{Name: "Message", Group: 0, Indexed: false, Autosize: true}}

// NewDefault returns the default passthrough parser.
func NewDefault() *DefaultParser { return &DefaultParser{} }

func (p *DefaultParser) ParseLine(line string, columns []string, _ *ParserContext) bool {
	columns[0] = line
	return true
}

func (p *DefaultParser) ColumnFormats() []ColumnFormat { return defaultColumns }

func (p *DefaultParser) IsMatch(sampleLines []string, fileName string) bool {
	// Never self-selects; the repository uses it only as a last resort.
	return false
}

func (p *DefaultParser) Name() string { return "default" }

func (p *DefaultParser) RGB(columns []string) (uint32, bool) { return 0, false }

func (p *DefaultParser) NewContext() *ParserContext { return newParserContext(1) }
