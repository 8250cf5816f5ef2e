package match

import "strings"

// Ratio returns the case-insensitive similarity of a and b on a 0-100
// scale, computed as 200*LCS/(len(a)+len(b)) over runes (the normalised
// insertion/deletion distance). Two empty strings are identical.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(ra, rb)) / float64(total)
}

// lcs returns the length of the longest common subsequence using two rows.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
