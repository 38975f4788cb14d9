package sniffer

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-burattino/burattino/pkg/inference/directive"
)

// splitIntoParts deterministically cuts s into 1..maxParts segments.
func splitIntoParts(s string, seed int64, maxParts int) []string {
	r := rand.New(rand.NewSource(seed))
	if len(s) < 2 || maxParts < 2 {
		return []string{s}
	}
	np := 1 + r.Intn(maxParts)
	cutSet := map[int]bool{}
	for len(cutSet) < np-1 {
		cutSet[1+r.Intn(len(s)-1)] = true
	}
	cuts := make([]int, 0, len(cutSet))
	for c := range cutSet {
		cuts = append(cuts, c)
	}
	sort.Ints(cuts)
	parts := make([]string, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		parts = append(parts, s[prev:c])
		prev = c
	}
	return append(parts, s[prev:])
}

// Property: visible output is independent of how the stream is segmented.
func TestSniffer_RandomSegmentations(t *testing.T) {
	cases := []struct {
		full    string
		visible string
	}{
		{`hello plain world`, `hello plain world`},
		{`pre [TOOL_REQUEST]{"name":"t"} post`, `pre `},
		{`x {"tool_call":{"name":"t"}} y`, `x {`},
		{`looks like [TOOL_ but is not`, `looks like [TOOL_ but is not`},
		{`[TOOL_REQUEST]`, ``},
	}
	for _, tc := range cases {
		for seed := int64(0); seed < 200; seed++ {
			s := New(directive.Sentinels()...)
			var out strings.Builder
			for _, p := range splitIntoParts(tc.full, seed, 10) {
				out.WriteString(s.Feed(p))
			}
			out.WriteString(s.Flush())
			require.Equalf(t, tc.visible, out.String(), "input %q seed %d", tc.full, seed)
		}
	}
}

func FuzzSniffer_SegmentationInvariance(f *testing.F) {
	const full = `before [TOOL_REQUEST]{"name":"t","parameters":{}} after`
	f.Add(int64(1))
	f.Add(int64(42))
	f.Add(int64(99999))
	f.Fuzz(func(t *testing.T, seed int64) {
		s := New(directive.Sentinels()...)
		var out strings.Builder
		for _, p := range splitIntoParts(full, seed, 10) {
			out.WriteString(s.Feed(p))
		}
		out.WriteString(s.Flush())
		require.Equal(t, "before ", out.String())
		require.True(t, s.Suppressed())
	})
}
