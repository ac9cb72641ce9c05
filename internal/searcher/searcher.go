// Package searcher implements the pluggable text-matching strategies
// for Index.Search: literal substring and regex, each with a caseless
// and Unicode-aware mode.
package searcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Searcher finds the first match of a pattern within text, reporting
// the match's start byte offset and byte length. A zero-length match
// (ok==true, length==0) is a valid literal-empty-pattern result; ok
// is false when there is no match.
type Searcher interface {
	Search(text string) (start, length int, ok bool)
}

// Options controls how a Searcher is built.
type Options struct {
	Caseless bool
	Unicode  bool // normalize to NFC before comparison
}

// NewLiteral builds a substring Searcher for pattern.
func NewLiteral(pattern string, opts Options) Searcher {
	return &literalSearcher{pattern: normalizeIf(pattern, opts), opts: opts}
}

type literalSearcher struct {
	pattern string
	opts    Options
}

func (s *literalSearcher) Search(text string) (int, int, bool) {
	hay := normalizeIf(text, s.opts)
	var idx int
	if s.opts.Caseless {
		idx = strings.Index(strings.ToLower(hay), strings.ToLower(s.pattern))
	} else {
		idx = strings.Index(hay, s.pattern)
	}
	if idx < 0 {
		return 0, 0, false
	}
	return idx, len(s.pattern), true
}

// NewRegex builds a regexp-backed Searcher. Built on stdlib regexp
// (RE2); see RegexLineParser in package lineparser for what this
// engine does not support. With opts.Unicode the pattern is
// NFC-normalized, like the text it is matched against.
func NewRegex(pattern string, opts Options) (Searcher, error) {
	p := normalizeIf(pattern, opts)
	if opts.Caseless {
		p = "(?i)" + p
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	return &regexSearcher{re: re, opts: opts}, nil
}

type regexSearcher struct {
	re   *regexp.Regexp
	opts Options
}

func (s *regexSearcher) Search(text string) (int, int, bool) {
	hay := normalizeIf(text, s.opts)
	loc := s.re.FindStringIndex(hay)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1] - loc[0], true
}

func normalizeIf(s string, opts Options) string {
	if !opts.Unicode {
		return s
	}
	return norm.NFC.String(s)
}
