package lineparser

import (
	"embed"
	"sort"
)

//go:embed defaults/*.json
var bundledConfigsFS embed.FS

// bundledEntries loads the parser configs shipped with the binary
// (200_journalctl.json and the 500_logseer.json catch-all), in the
// same DDD_name.json priority convention as a user's config directory.
// A malformed bundled config is a programming error, not a runtime
// condition, so it panics rather than skipping it with a logged
// warning the way reload() does for user-supplied files.
func bundledEntries() []entry {
	files, err := bundledConfigsFS.ReadDir("defaults")
	if err != nil {
		panic("lineparser: reading bundled defaults: " + err.Error())
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		data, err := bundledConfigsFS.ReadFile("defaults/" + f.Name())
		if err != nil {
			panic("lineparser: reading bundled default " + f.Name() + ": " + err.Error())
		}
		priority, name := splitPriority(f.Name())
		p, err := Load(name, data)
		if err != nil {
			panic("lineparser: compiling bundled default " + f.Name() + ": " + err.Error())
		}
		entries = append(entries, entry{priority: priority, parser: p})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })
	return entries
}
