package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Named parse utilities for numbers and dates embedded in free text. Each
// reports false when its pattern does not match; callers turn that into a
// null field.

var (
	reEpisodeCount = regexp.MustCompile(`(?i)\bepisodes?\s*:\s*(\d+)`)
	reDurationTail = regexp.MustCompile(`(?i)\bduration\s*:\s*(.+)`)
	reHours        = regexp.MustCompile(`(?i)(\d+)\s*(?:h|hr|hrs|hour|hours)\b\.?`)
	reMinutes      = regexp.MustCompile(`(?i)(\d+)\s*(?:m|min|mins|minute|minutes)\b\.?`)
	reRating       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:/\s*(100|10|5))?`)
	reYear         = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// EpisodeCount reads "Episodes: 16" style counts.
func EpisodeCount(text string) (string, bool) {
	m := reEpisodeCount.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n), true
}

// Duration reads "Duration: 1 hr. 10 min." or "Duration: 45 min" and
// normalizes to whole minutes, e.g. "70 min". A bare value without the
// label is accepted too.
func Duration(text string) (string, bool) {
	tail := text
	if m := reDurationTail.FindStringSubmatch(text); m != nil {
		tail = m[1]
	}

	total := 0
	matched := false
	if m := reHours.FindStringSubmatch(tail); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
		matched = true
	}
	if m := reMinutes.FindStringSubmatch(tail); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += mins
		matched = true
	}
	if !matched || total <= 0 {
		return "", false
	}
	return strconv.Itoa(total) + " min", true
}

// Rating reads a score such as "8.5", "8,5/10" or "4.2 / 5" and returns it
// on a 10-point scale with one decimal.
func Rating(text string) (string, bool) {
	m := reRating.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return "", false
	}
	switch m[2] {
	case "5":
		v *= 2
	case "100":
		v /= 10
	}
	if v < 0 || v > 10 {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', 1, 64), true
}

// Year reads the first four-digit year in the text.
func Year(text string) (string, bool) {
	m := reYear.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
