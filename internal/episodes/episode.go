// Package episodes normalizes the episode/chapter lists of detail records:
// number parsing, de-duplication, ordering and selection.
package episodes

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brogergvhs/showscrape/internal/domain"
)

var (
	episodeRe   = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:episode|eps?)\.?[_\-\s]*0*([0-9]+)(?:[.\-]([0-9]+))?`)
	chapRe      = regexp.MustCompile(`(?i)(?:vol(?:ume)?[_\-\s]*\d+[_\-\s]*)?(?:chapter|ch)\.?[_\-\s]*0*([0-9]+)(?:[_\-\s]*([.\-])[_\-\s]*([0-9]+))?`)
	chapterDash = regexp.MustCompile(`(?i)chapter[_\-]?0*([0-9]+)(?:[_\-.]([0-9]+))?$`)
	titlePrefix = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*[.\- ]`)
)

// Number is a parsed episode or chapter number, e.g. 12 or 28.5.
type Number struct {
	Main       int
	SuffixType string
	SuffixNum  int
}

// Label renders the number the way it appears upstream.
func (n Number) Label() string {
	if n.SuffixType == "" {
		return strconv.Itoa(n.Main)
	}
	return fmt.Sprintf("%d%s%d", n.Main, n.SuffixType, n.SuffixNum)
}

// Less orders numbers by main part, then suffix.
func (n Number) Less(o Number) bool {
	if n.Main != o.Main {
		return n.Main < o.Main
	}
	if n.SuffixType != o.SuffixType {
		return n.SuffixType < o.SuffixType
	}
	return n.SuffixNum < o.SuffixNum
}

// ParseNumber derives the episode/chapter number from an episode id and
// its anchor title. The id is tried first because titles are free text.
func ParseNumber(id, title string) (Number, bool) {
	for _, try := range []func() (Number, bool){
		func() (Number, bool) { return matchEpisode(id) },
		func() (Number, bool) { return matchChapterDash(id) },
		func() (Number, bool) { return matchEpisode(title) },
		func() (Number, bool) { return matchChapRe(title) },
		func() (Number, bool) { return matchTitlePrefix(title) },
	} {
		if n, ok := try(); ok {
			return n, true
		}
	}
	return Number{}, false
}

// NumberLabel is ParseNumber reduced to its label, in the comma-ok form the
// extractors use.
func NumberLabel(text string) (string, bool) {
	n, ok := ParseNumber("", text)
	if !ok {
		return "", false
	}
	return n.Label(), true
}

func matchEpisode(s string) (Number, bool) {
	m := episodeRe.FindStringSubmatch(s)
	if m == nil {
		return Number{}, false
	}
	main, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		sub, _ := strconv.Atoi(m[2])
		return Number{Main: main, SuffixType: ".", SuffixNum: sub}, true
	}
	return Number{Main: main}, true
}

func matchChapterDash(h string) (Number, bool) {
	m := chapterDash.FindStringSubmatch(h)
	if m == nil {
		return Number{}, false
	}
	main, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		sub, _ := strconv.Atoi(m[2])
		return Number{Main: main, SuffixType: ".", SuffixNum: sub}, true
	}
	return Number{Main: main}, true
}

func matchChapRe(title string) (Number, bool) {
	m := chapRe.FindStringSubmatch(title)
	if m == nil {
		return Number{}, false
	}
	main, _ := strconv.Atoi(m[1])
	if m[2] == "" {
		return Number{Main: main}, true
	}
	sub, _ := strconv.Atoi(m[3])
	return Number{Main: main, SuffixType: m[2], SuffixNum: sub}, true
}

func matchTitlePrefix(title string) (Number, bool) {
	m := titlePrefix.FindStringSubmatch(title)
	if m == nil {
		return Number{}, false
	}
	parts := strings.SplitN(m[1], ".", 2)
	main, _ := strconv.Atoi(parts[0])
	if len(parts) == 2 {
		sub, _ := strconv.Atoi(parts[1])
		return Number{Main: main, SuffixType: ".", SuffixNum: sub}, true
	}
	return Number{Main: main}, true
}

// Dedupe collapses refs sharing the same (title, episode id) pair, keeping
// the first occurrence.
func Dedupe(refs []domain.EpisodeRef) []domain.EpisodeRef {
	type key struct{ title, id string }
	seen := make(map[key]struct{}, len(refs))
	out := make([]domain.EpisodeRef, 0, len(refs))
	for _, r := range refs {
		k := key{r.Title, r.EpisodeID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Sort orders refs by parsed number ascending. Refs without a number keep
// their relative order after the numbered ones.
func Sort(refs []domain.EpisodeRef) {
	nums := make(map[int]Number, len(refs))
	has := make(map[int]bool, len(refs))
	idx := make([]int, len(refs))
	for i, r := range refs {
		idx[i] = i
		if n, ok := ParseNumber(r.EpisodeID, r.Title); ok {
			nums[i], has[i] = n, true
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		switch {
		case has[ia] && has[ib]:
			return nums[ia].Less(nums[ib])
		case has[ia]:
			return true
		default:
			return false
		}
	})
	sorted := make([]domain.EpisodeRef, len(refs))
	for i, j := range idx {
		sorted[i] = refs[j]
	}
	copy(refs, sorted)
}
