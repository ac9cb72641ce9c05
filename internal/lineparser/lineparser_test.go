package lineparser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
  "description": "level/component",
  "regex": "^(\\d+-\\d+-\\d+) \\[(\\w+)\\] (\\w+): (.*)$",
  "columns": [
    {"name": "Time", "group": 1, "indexed": false, "autosize": false},
    {"name": "Level", "group": 2, "indexed": true, "autosize": true},
    {"name": "Component", "group": 3, "indexed": true, "autosize": true},
    {"name": "Message", "group": 4, "indexed": false, "autosize": true}
  ],
  "colors": [
    {"column": "Level", "value": "ERROR", "color": "FF0000"}
  ]
}`

// invalidConfig references a capture group beyond the regex's range,
// which must raise ErrColumnMisreference without blocking other
// parsers from loading.
const invalidConfig = `{
  "description": "broken",
  "regex": "^(\\w+)$",
  "columns": [
    {"name": "Bad", "group": 5, "indexed": false, "autosize": false}
  ]
}`

func TestRegexLineParserBasic(t *testing.T) {
	p, err := Load("levelcomp", []byte(validConfig))
	require.NoError(t, err)

	cols := make([]string, len(p.ColumnFormats()))
	ok := p.ParseLine("2024-01-02 [INFO] net: link up", cols, p.NewContext())
	require.True(t, ok)
	require.Equal(t, []string{"2024-01-02", "INFO", "net", "link up"}, cols)

	ok = p.ParseLine("not a matching line", cols, p.NewContext())
	require.False(t, ok)
}

func TestRegexLineParserColors(t *testing.T) {
	p, err := Load("levelcomp", []byte(validConfig))
	require.NoError(t, err)
	cols := []string{"2024-01-02", "ERROR", "net", "boom"}
	color, ok := p.RGB(cols)
	require.True(t, ok)
	require.Equal(t, uint32(0xFF0000), color)

	cols[1] = "INFO"
	_, ok = p.RGB(cols)
	require.False(t, ok)
}

func TestLoadRejectsOutOfRangeGroup(t *testing.T) {
	_, err := Load("broken", []byte(invalidConfig))
	require.Error(t, err)
	require.ErrorContains(t, err, "nonexistent capture group")
}

func TestLoadRejectsMagicAndDetectorTogether(t *testing.T) {
	magic := "PFX"
	cfg := regexConfig{Regex: "^.*$", Magic: &magic, Detector: []string{"x"}}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	_, err = Load("both", data)
	require.Error(t, err)
}

// One malformed config must not prevent the rest of the repository
// from loading or resolving.
func TestRepositorySkipsMalformedConfigs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "010_levelcomp.json"), []byte(validConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "005_broken.json"), []byte(invalidConfig), 0o644))

	repo, err := NewRepository(dir, zerolog.Nop())
	require.NoError(t, err)
	defer repo.Close()

	lp := repo.Resolve([]string{"2024-01-02 [INFO] net: link up"}, "any.log")
	require.Equal(t, "levelcomp", lp.Name())

	require.Equal(t, "default", repo.ResolveByName("broken").Name())
	require.Equal(t, "default", repo.ResolveByName("nonexistent").Name())
}

func TestRepositoryFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "010_levelcomp.json"), []byte(validConfig), 0o644))

	repo, err := NewRepository(dir, zerolog.Nop())
	require.NoError(t, err)
	defer repo.Close()

	// A line no specific parser accepts lands on the bundled logseer
	// catch-all, not the code-level default.
	lp := repo.Resolve([]string{"completely unrelated text"}, "any.log")
	require.Equal(t, "logseer", lp.Name())

	// With no sample lines at all nothing matches, which is the only
	// path to the built-in passthrough parser.
	lp = repo.Resolve(nil, "empty.log")
	require.Equal(t, "default", lp.Name())
}

func TestSplitPriority(t *testing.T) {
	p, name := splitPriority("010_levelcomp.json")
	require.Equal(t, 10, p)
	require.Equal(t, "levelcomp", name)

	p, name = splitPriority("noprefix.json")
	require.Equal(t, 0, p)
	require.Equal(t, "noprefix", name)
}
