package lineparser

import "github.com/cespare/xxhash/v2"

// SampleSource is the minimal FileParser surface Sample needs, kept
// narrow so this package never imports fileparser directly (it would
// otherwise be the only cross-dependency between the two leaf
// packages).
type SampleSource interface {
	LineCount() int64
	ReadLine(i int64) (string, error)
}

// Sample gathers up to n sample lines for Repository.Resolve to
// classify a file with. Exact-duplicate lines are
// deduplicated by a fast xxhash digest rather than string comparison,
// since pathological log files repeat a banner line hundreds of times
// before any distinguishing content appears and re-running every
// registered parser's IsMatch against identical text wastes the
// classification pass for no benefit.
func Sample(src SampleSource, n int) []string {
	count := src.LineCount()
	if int64(n) > count {
		n = int(count)
	}
	seen := make(map[uint64]struct{}, n)
	out := make([]string, 0, n)
	for i := int64(0); i < count && len(out) < n; i++ {
		line, err := src.ReadLine(i)
		if err != nil {
			continue
		}
		h := xxhash.Sum64String(line)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, line)
	}
	return out
}
