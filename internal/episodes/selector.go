package episodes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brogergvhs/showscrape/internal/domain"
)

// ErrBadRange is returned for a range that is not "a-b" with 1 <= a <= b.
var ErrBadRange = errors.New("invalid episode range")

// Filter selects episodes by label, 1-based range "a-b" or comma list, in
// that order of precedence. With no selector the full list is returned.
// Only a malformed range is an error; a selection that matches nothing is
// an empty, non-nil slice.
func Filter(all []domain.EpisodeRef, label string, rng string, list string) ([]domain.EpisodeRef, error) {
	switch {
	case label != "":
		return byLabelOrIndex(all, label), nil
	case rng != "":
		return FilterRange(all, rng)
	case list != "":
		return FilterList(all, list), nil
	}
	return all, nil
}

// byLabelOrIndex matches the parsed episode label first. Only when no
// episode carries that label is a numeric label read as a 1-based
// position, so "3" picks the third entry of an unnumbered list.
func byLabelOrIndex(all []domain.EpisodeRef, label string) []domain.EpisodeRef {
	if byLabel := FilterByLabel(all, label); len(byLabel) > 0 {
		return byLabel
	}
	if idx, err := atoi(label); err == nil && idx > 0 && idx <= len(all) {
		return []domain.EpisodeRef{all[idx-1]}
	}
	return []domain.EpisodeRef{}
}

// FilterByLabel matches the parsed episode number label, e.g. "12" or "28.5".
func FilterByLabel(all []domain.EpisodeRef, label string) []domain.EpisodeRef {
	var out []domain.EpisodeRef
	for _, ep := range all {
		if ep.EpisodeNumber != nil && *ep.EpisodeNumber == label {
			out = append(out, ep)
		}
	}
	return out
}

// ParseRange reads "a-b" into its 1-based bounds.
func ParseRange(rng string) (start, end int, err error) {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w %q", ErrBadRange, rng)
	}
	start, err1 := atoi(parts[0])
	end, err2 := atoi(parts[1])
	if err1 != nil || err2 != nil || start <= 0 || start > end {
		return 0, 0, fmt.Errorf("%w %q", ErrBadRange, rng)
	}
	return start, end, nil
}

// FilterRange returns the part of all inside the range. Bounds past the
// end of the list are clipped.
func FilterRange(all []domain.EpisodeRef, rng string) ([]domain.EpisodeRef, error) {
	start, end, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	if start > len(all) {
		return []domain.EpisodeRef{}, nil
	}
	end = min(end, len(all))
	return all[start-1 : end], nil
}

func FilterList(all []domain.EpisodeRef, list string) []domain.EpisodeRef {
	out := []domain.EpisodeRef{}
	for _, n := range strings.Split(list, ",") {
		idx, err := atoi(n)
		if err != nil {
			continue
		}
		if idx > 0 && idx <= len(all) {
			out = append(out, all[idx-1])
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
