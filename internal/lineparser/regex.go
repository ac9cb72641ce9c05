package lineparser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/logscope/logscope/internal/coreerr"
)

// regexConfig is the on-disk JSON shape of a parser configuration.
type regexConfig struct {
	Description string         `json:"description"`
	Regex       string         `json:"regex"`
	Magic       *string        `json:"magic,omitempty"`
	Detector    []string       `json:"detector,omitempty"`
	Columns     []columnConfig `json:"columns"`
	Colors      []colorRule    `json:"colors,omitempty"`
}

type columnConfig struct {
	Name     string `json:"name"`
	Group    int    `json:"group"`
	Indexed  bool   `json:"indexed"`
	Autosize bool   `json:"autosize"`
}

type colorRule struct {
	Column string `json:"column"`
	Value  string `json:"value"`
	Color  string `json:"color"`
}

// RegexLineParser is the regex-backed LineParser. Built on Go's
// standard regexp (RE2): patterns relying on backreferences or
// lookaround will fail to load.
type RegexLineParser struct {
	name      string
	re        *regexp.Regexp
	columns   []ColumnFormat
	colIndex  map[string]int
	magic     string
	hasMagic  bool
	hasDetect bool
	colors    []colorRule
}

// Load parses a parser-configuration document and compiles it. Returns
// a wrapped coreerr.ErrConfigSyntax or coreerr.ErrColumnMisreference on
// any validation failure; name is derived from the config filename by
// the caller (repository.go) and used only for diagnostics/resolveByName.
func Load(name string, data []byte) (*RegexLineParser, error) {
	var cfg regexConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("lineparser %s: %w: %v", name, coreerr.ErrConfigSyntax, err)
	}
	if cfg.Magic != nil && len(cfg.Detector) > 0 {
		return nil, fmt.Errorf("lineparser %s: %w: magic and detector are mutually exclusive", name, coreerr.ErrConfigSyntax)
	}

	re, err := regexp.Compile(cfg.Regex)
	if err != nil {
		return nil, fmt.Errorf("lineparser %s: %w: %v", name, coreerr.ErrConfigSyntax, err)
	}

	numGroups := re.NumSubexp()
	columns := make([]ColumnFormat, len(cfg.Columns))
	colIndex := make(map[string]int, len(cfg.Columns))
	for i, c := range cfg.Columns {
		if c.Group < 0 || c.Group > numGroups {
			return nil, fmt.Errorf("lineparser %s: %w: column %q references group %d, regex has %d groups",
				name, coreerr.ErrColumnMisreference, c.Name, c.Group, numGroups)
		}
		columns[i] = ColumnFormat{Name: c.Name, Group: c.Group, Indexed: c.Indexed, Autosize: c.Autosize}
		colIndex[c.Name] = i
	}

	p := &RegexLineParser{
		name:     name,
		re:       re,
		columns:  columns,
		colIndex: colIndex,
		colors:   cfg.Colors,
	}
	if cfg.Magic != nil {
		p.magic = *cfg.Magic
		p.hasMagic = true
	}
	if len(cfg.Detector) > 0 {
		// Scripted detectors are out of core scope; the parser
		// loads successfully but never self-selects.
		p.hasDetect = true
	}
	return p, nil
}

func (p *RegexLineParser) ParseLine(line string, columns []string, _ *ParserContext) bool {
	m := p.re.FindStringSubmatchIndex(line)
	if m == nil {
		return false
	}
	for i, c := range p.columns {
		lo, hi := m[2*c.Group], m[2*c.Group+1]
		if lo < 0 || hi < 0 {
			columns[i] = ""
			continue
		}
		columns[i] = line[lo:hi]
	}
	return true
}

func (p *RegexLineParser) ColumnFormats() []ColumnFormat { return p.columns }

func (p *RegexLineParser) IsMatch(sampleLines []string, fileName string) bool {
	if p.hasMagic {
		for _, line := range sampleLines {
			if strings.HasPrefix(line, p.magic) {
				return true
			}
		}
		return false
	}
	if p.hasDetect {
		return false
	}
	if len(sampleLines) == 0 {
		return false
	}
	return p.re.MatchString(sampleLines[0])
}

func (p *RegexLineParser) Name() string { return p.name }

// RGB walks the color rules in file order and returns the first
// matching rule's color; order is significant.
func (p *RegexLineParser) RGB(columns []string) (uint32, bool) {
	for _, rule := range p.colors {
		idx, ok := p.colIndex[rule.Column]
		if !ok || idx >= len(columns) {
			continue
		}
		if columns[idx] != rule.Value {
			continue
		}
		v, err := strconv.ParseUint(rule.Color, 16, 32)
		if err != nil {
			continue
		}
		return uint32(v), true
	}
	return 0, false
}

func (p *RegexLineParser) NewContext() *ParserContext { return newParserContext(len(p.columns)) }
