package index

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/logscope/logscope/internal/fileparser"
	"github.com/logscope/logscope/internal/lineparser"
)

// levelParser splits "LEVEL message" lines into an indexed Level
// column and an Autosize Message column, for index-package tests that
// need a real LineParser without depending on regex config JSON.
type levelParser struct{}

func (levelParser) ParseLine(line string, columns []string, _ *lineparser.ParserContext) bool {
	level, msg, ok := strings.Cut(line, " ")
	if !ok {
		return false
	}
	columns[0] = level
	columns[1] = msg
	return true
}

func (levelParser) ColumnFormats() []lineparser.ColumnFormat {
	return []lineparser.ColumnFormat{
		{Name: "Level", Indexed: true},
		{Name: "Message", Autosize: true},
	}
}

func (levelParser) IsMatch(_ []string, _ string) bool    { return true }
func (levelParser) Name() string                         { return "level" }
func (levelParser) RGB(_ []string) (uint32, bool)         { return 0, false }
func (levelParser) NewContext() *lineparser.ParserContext { return nil }

func buildTestIndex(t *testing.T, lines ...string) (*Index, *fileparser.FileParser) {
	t.Helper()
	data := strings.Join(lines, "\n") + "\n"
	fp := fileparser.FromBytes([]byte(data), nil)
	ok, err := fp.Index(nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	idx := New(levelParser{}.ColumnFormats())
	ok, err = idx.Build(fp, levelParser{}, 2, nil, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	return idx, fp
}

func TestBuildIndexesColumnValues(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"INFO starting up",
		"ERROR disk full",
		"INFO still running",
		"ERROR disk full again",
	)

	require.EqualValues(t, 4, idx.UnfilteredLineCount())

	values, err := idx.GetValues("Level")
	require.NoError(t, err)
	want := []ValueCount{
		{Value: "ERROR", Count: 2, Selected: true},
		{Value: "INFO", Count: 2, Selected: true},
	}
	if diff := cmp.Diff(want, values, cmpopts.SortSlices(func(a, b ValueCount) bool { return a.Value < b.Value })); diff != "" {
		t.Errorf("GetValues mismatch (-want +got):\n%s", diff)
	}
}

func TestSetColumnFilterRestrictsLineMap(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"INFO one",
		"ERROR two",
		"INFO three",
	)

	require.NoError(t, idx.SetColumnFilter("Level", []string{"ERROR"}))
	lm := idx.LineMap()
	require.Equal(t, 1, lm.Size())
	require.EqualValues(t, 1, lm.Get(0))

	require.NoError(t, idx.ClearFilter("Level"))
	require.False(t, idx.Filtered())
}

func TestCloneIsIndependentOfLiveFilterMutation(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"INFO one",
		"ERROR two",
		"INFO three",
	)

	snapshot := idx.Clone()
	require.NoError(t, idx.SetColumnFilter("Level", []string{"ERROR"}))

	require.False(t, snapshot.Filtered())
	require.True(t, idx.Filtered())
}

func TestBuildExtendsValueThroughConsecutiveFailures(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"ERROR disk full",
		"continuation-no-space",
		"another-continuation",
		"INFO next message",
	)

	require.NoError(t, idx.SetColumnFilter("Level", []string{"ERROR"}))
	lm := idx.LineMap()
	require.Equal(t, 3, lm.Size())
	require.EqualValues(t, 0, lm.Get(0))
	require.EqualValues(t, 1, lm.Get(1))
	require.EqualValues(t, 2, lm.Get(2))

	require.NoError(t, idx.SetColumnFilter("Level", []string{"INFO"}))
	lm = idx.LineMap()
	require.Equal(t, 1, lm.Size())
	require.EqualValues(t, 3, lm.Get(0))
}

func TestBuildAttributesLeadingFailuresToEmptyValue(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"leadingfail1",
		"leadingfail2",
		"INFO first success",
	)

	require.NoError(t, idx.SetColumnFilter("Level", []string{""}))
	lm := idx.LineMap()
	require.Equal(t, 2, lm.Size())
	require.EqualValues(t, 0, lm.Get(0))
	require.EqualValues(t, 1, lm.Get(1))

	values, err := idx.GetValues("Level")
	require.NoError(t, err)
	var sawEmpty bool
	for _, v := range values {
		if v.Value == "" {
			sawEmpty = true
			require.Equal(t, 2, v.Count)
		}
	}
	require.True(t, sawEmpty, "expected an empty-string value entry for leading unparseable lines")
}

// TestRefinedFilterMatchesDirectComputation drives the incremental
// union path (grow a selection, then shrink it) and checks the
// resulting LineMap against an identically filtered fresh Index that
// can only have taken the direct-union path.
func TestRefinedFilterMatchesDirectComputation(t *testing.T) {
	lines := []string{
		"INFO one",
		"WARN two",
		"ERROR three",
		"DEBUG four",
		"INFO five",
		"WARN six",
		"ERROR seven",
	}
	idx, _ := buildTestIndex(t, lines...)
	fresh, _ := buildTestIndex(t, lines...)

	steps := [][]string{
		{"INFO", "WARN", "ERROR"},
		{"INFO", "WARN", "ERROR", "DEBUG"}, // one added: incremental
		{"INFO", "WARN", "DEBUG"},          // one removed: incremental
		{"ERROR"},                          // mostly changed: direct
	}
	for _, sel := range steps {
		require.NoError(t, idx.SetColumnFilter("Level", sel))
		// A newly built Index has no cached union, so its first filter
		// always takes the direct path.
		fresh, _ := buildTestIndex(t, lines...)
		require.NoError(t, fresh.ClearFilters())
		require.NoError(t, fresh.SetColumnFilter("Level", sel))

		got, want := idx.LineMap(), fresh.LineMap()
		require.Equal(t, want.Size(), got.Size(), "selection %v", sel)
		for k := 0; k < want.Size(); k++ {
			require.Equal(t, want.Get(k), got.Get(k), "selection %v k=%d", sel, k)
		}
	}
}

func TestFilterOrderDoesNotMatter(t *testing.T) {
	lines := []string{
		"INFO one",
		"WARN two",
		"ERROR three",
		"INFO four",
	}
	a, _ := buildTestIndex(t, lines...)
	b, _ := buildTestIndex(t, lines...)

	require.NoError(t, a.SetColumnFilter("Level", []string{"INFO", "ERROR"}))
	require.NoError(t, b.SetColumnFilter("Level", []string{"ERROR", "INFO"}))

	la, lb := a.LineMap(), b.LineMap()
	require.Equal(t, lb.Size(), la.Size())
	for k := 0; k < la.Size(); k++ {
		require.Equal(t, lb.Get(k), la.Get(k))
	}
}

func TestMaxWidthTracksWidestAutosizeValue(t *testing.T) {
	idx, _ := buildTestIndex(t,
		"INFO short",
		"INFO a much longer message than the rest",
	)
	width, line, ok := idx.MaxWidth("Message")
	require.True(t, ok)
	require.EqualValues(t, 1, line)
	require.Equal(t, len("a much longer message than the rest"), width)
}

func TestSearchRespectsCurrentFilter(t *testing.T) {
	idx, fp := buildTestIndex(t,
		"INFO message one",
		"WARN message 4",
		"INFO message 4",
		"ERROR message five",
	)

	res, ok, err := idx.Search(fp, levelParser{}, SearchOptions{Pattern: "4"}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, res.Lines)

	require.NoError(t, idx.SetColumnFilter("Level", []string{"INFO"}))
	res, ok, err = idx.Search(fp, levelParser{}, SearchOptions{Pattern: "4"}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{2}, res.Lines)
}

func TestSearchMessageOnlySkipsOtherColumns(t *testing.T) {
	idx, fp := buildTestIndex(t,
		"INFO nothing here",
		"INFOSUFFIX INFO inside the message",
	)

	// Whole-line search matches the Level column of line 0 too.
	res, ok, err := idx.Search(fp, levelParser{}, SearchOptions{Pattern: "INFO"}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{0, 1}, res.Lines)

	res, ok, err = idx.Search(fp, levelParser{}, SearchOptions{Pattern: "INFO", MessageOnly: "Message"}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{1}, res.Lines)
}

func TestSearchHistCountsEveryMatch(t *testing.T) {
	idx, fp := buildTestIndex(t,
		"INFO a",
		"INFO b",
		"WARN a",
		"INFO a",
	)
	res, ok, err := idx.Search(fp, levelParser{}, SearchOptions{Pattern: "a", HistBuckets: 4}, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, res.Hist)
	require.EqualValues(t, len(res.Lines), res.Hist.Total())
}

func TestSearchStoppedReturnsNotOK(t *testing.T) {
	idx, fp := buildTestIndex(t,
		"INFO a",
		"INFO b",
		"INFO c",
	)
	_, ok, err := idx.Search(fp, levelParser{}, SearchOptions{Pattern: "a"}, func() bool { return true }, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// A stopped Build leaves the Index unpopulated rather than exposing
// a partial column index.
func TestBuildStopDiscardsPartialResults(t *testing.T) {
	data := strings.Join([]string{"INFO one", "INFO two", "INFO three"}, "\n") + "\n"
	fp := fileparser.FromBytes([]byte(data), nil)
	ok, err := fp.Index(nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	idx := New(levelParser{}.ColumnFormats())
	ok, err = idx.Build(fp, levelParser{}, 2, func() bool { return true }, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)

	require.EqualValues(t, 0, idx.UnfilteredLineCount())
	_, err = idx.GetValues("Level")
	require.Error(t, err)
}
