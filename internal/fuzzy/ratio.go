// Package fuzzy implements substring-tolerant name matching against fixed
// reference sets.
package fuzzy

import "strings"

// Ratio returns the normalized Indel similarity of a and b in [0,100]:
// 100 * 2*LCS / (len(a)+len(b)), measured in runes.
func Ratio(a, b string) float64 {
	return ratio([]rune(a), []rune(b))
}

// PartialRatio aligns the shorter string against every window of the longer
// one and returns the best Ratio. Windows are all same-length substrings plus
// the shorter prefixes and suffixes that overhang either end. The score is
// symmetric in its arguments.
func PartialRatio(a, b string) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	if a == "" {
		if b == "" {
			return 100
		}
		return 0
	}
	if strings.Contains(b, a) {
		return 100
	}

	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	m, n := len(short), len(long)

	best := 0.0
	for i := 0; i+m <= n; i++ {
		if r := ratio(short, long[i:i+m]); r > best {
			best = r
		}
	}
	for k := 1; k < m && k <= n; k++ {
		if r := ratio(short, long[:k]); r > best {
			best = r
		}
		if r := ratio(short, long[n-k:]); r > best {
			best = r
		}
	}
	return best
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcs(a, b)) / float64(total)
}

// lcs returns the length of the longest common subsequence using a single
// rolling row.
func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		diag := 0
		for j := 1; j <= len(b); j++ {
			up := row[j]
			switch {
			case a[i-1] == b[j-1]:
				row[j] = diag + 1
			case row[j-1] > row[j]:
				row[j] = row[j-1]
			}
			diag = up
		}
	}
	return row[len(b)]
}
