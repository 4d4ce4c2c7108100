// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coverage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LCOV renders the recorded hits, one record per contract per test name.
// Boot contracts are skipped unless includeBoot is set, in which case their
// files are reported under bootPath.
func (t *Tracker) LCOV(includeBoot bool, bootPath string) string {
	if !t.enabled {
		return ""
	}
	tests := t.order
	if len(tests) == 0 {
		tests = []string{t.testName}
	}
	var b strings.Builder
	for _, test := range tests {
		byContract := t.tests[test]
		ids := make([]string, 0, len(t.contracts))
		for id, info := range t.contracts {
			if info.boot && !includeBoot {
				continue
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			info := t.contracts[id]
			c, ok := byContract[id]
			if !ok {
				c = newCounters()
			}
			path := info.path
			if info.boot && bootPath != "" {
				path = filepath.Join(bootPath, filepath.Base(path))
			}
			writeRecord(&b, test, path, info, c)
		}
	}
	return b.String()
}

func writeRecord(b *strings.Builder, test, path string, info *contractInfo, c *counters) {
	fmt.Fprintf(b, "TN:%s\n", test)
	fmt.Fprintf(b, "SF:%s\n", path)

	for _, fn := range info.functions {
		fmt.Fprintf(b, "FN:%d,%s\n", fn.Line, fn.Name)
	}
	hitFns := 0
	for _, fn := range info.functions {
		n := c.functions[fn.Name]
		if n > 0 {
			hitFns++
		}
		fmt.Fprintf(b, "FNDA:%d,%s\n", n, fn.Name)
	}
	fmt.Fprintf(b, "FNF:%d\n", len(info.functions))
	fmt.Fprintf(b, "FNH:%d\n", hitFns)

	var found, hit int
	for _, br := range info.branches {
		for arm := uint32(0); arm < br.Arms; arm++ {
			found++
			n := c.branches[branchKey{id: br.ID, arm: arm}]
			if n > 0 {
				hit++
			}
			if c.lines[br.Line] == 0 {
				fmt.Fprintf(b, "BRDA:%d,%d,%d,-\n", br.Line, br.ID, arm)
				continue
			}
			fmt.Fprintf(b, "BRDA:%d,%d,%d,%d\n", br.Line, br.ID, arm, n)
		}
	}
	fmt.Fprintf(b, "BRF:%d\n", found)
	fmt.Fprintf(b, "BRH:%d\n", hit)

	hitLines := 0
	for _, line := range info.lines {
		n := c.lines[line]
		if n > 0 {
			hitLines++
		}
		fmt.Fprintf(b, "DA:%d,%d\n", line, n)
	}
	fmt.Fprintf(b, "LF:%d\n", len(info.lines))
	fmt.Fprintf(b, "LH:%d\n", hitLines)
	b.WriteString("end_of_record\n")
}
