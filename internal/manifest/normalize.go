package manifest

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Comparator orders two version strings. It returns a negative number if
// a sorts before b, zero if they rank equally, and a positive number
// otherwise. Providers whose version scheme is not semver-shaped may
// supply their own comparator.
type Comparator func(a, b string) int

// Normalize deduplicates releases by exact version string, keeping the
// first occurrence (and with it the first-seen timestamp and digest),
// then sorts ascending under cmp so that the newest version comes last.
// The input slice is not modified. A nil cmp falls back to
// CompareVersions.
func Normalize(releases []Release, cmp Comparator) []Release {
	if cmp == nil {
		cmp = CompareVersions
	}

	seen := make(map[string]bool, len(releases))
	result := make([]Release, 0, len(releases))
	for _, release := range releases {
		if seen[release.Version] {
			continue
		}
		seen[release.Version] = true
		result = append(result, release)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return cmp(result[i].Version, result[j].Version) < 0
	})

	return result
}

// CompareVersions is the default ordering policy: strict semantic
// versioning when both strings parse as (possibly v-prefixed, possibly
// partial) semver, otherwise a segment-wise comparison where numeric
// segments compare numerically and everything else lexically. The
// fallback handles schemes like "9.4-1194" or "9.5-1734081738".
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareSegments(a, b)
}

func compareSegments(a, b string) int {
	segsA := splitSegments(a)
	segsB := splitSegments(b)

	for i := 0; i < len(segsA) && i < len(segsB); i++ {
		numA, okA := parseNumeric(segsA[i])
		numB, okB := parseNumeric(segsB[i])
		switch {
		case okA && okB:
			if numA != numB {
				if numA < numB {
					return -1
				}
				return 1
			}
		case okA != okB:
			// Numeric segments rank above non-numeric ones.
			if okA {
				return 1
			}
			return -1
		default:
			if c := strings.Compare(segsA[i], segsB[i]); c != 0 {
				return c
			}
		}
	}

	return len(segsA) - len(segsB)
}

func splitSegments(version string) []string {
	version = strings.TrimPrefix(version, "v")
	version = strings.TrimPrefix(version, "V")
	return strings.FieldsFunc(version, func(r rune) bool {
		return r == '.' || r == '-' || r == '_' || r == '+'
	})
}

func parseNumeric(segment string) (int64, bool) {
	n, err := strconv.ParseInt(segment, 10, 64)
	return n, err == nil
}
