package classify

import (
	"regexp"
	"strconv"
)

var (
	reDigits = regexp.MustCompile(`\d+`)
	reFY     = regexp.MustCompile(`(?i)\bfy[-_ ]?(\d{2})(?:\D|$)`)
)

// Years returns every four-digit year token in s, in order of appearance.
func Years(s string) []int {
	var years []int
	for _, tok := range reDigits.FindAllString(s, -1) {
		if len(tok) != 4 {
			continue
		}
		y, _ := strconv.Atoi(tok)
		if y >= 1900 && y <= 2099 {
			years = append(years, y)
		}
	}
	for _, m := range reFY.FindAllStringSubmatch(s, -1) {
		n, _ := strconv.Atoi(m[1])
		years = append(years, 2000+n)
	}
	return years
}

// DetectYear picks the most recent plausible report year mentioned in s,
// or 0 when there is none.
func DetectYear(s string, currentYear int) int {
	best := 0
	for _, y := range Years(s) {
		if y < 2000 || y > currentYear+1 {
			continue
		}
		if y > best {
			best = y
		}
	}
	return best
}

// HasYearBefore reports whether s mentions any year earlier than cutoff.
func HasYearBefore(s string, cutoff int) bool {
	for _, y := range Years(s) {
		if y < cutoff {
			return true
		}
	}
	return false
}
