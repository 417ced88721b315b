package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"

	"github.com/brogergvhs/showscrape/internal/domain"
)

const maxCell = 60

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxCell {
		return s
	}
	return string(r[:maxCell-1]) + "…"
}

func pagerLine(p domain.Pagination) string {
	return fmt.Sprintf("max page %d, prev %t, next %t", p.MaxPage, p.HasPrev, p.HasNext)
}

func renderItems(w io.Writer, items []domain.ListingItem) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title", "Series", "Raw ID", "Episode", "Rating"})
	for i, it := range items {
		t.AppendRow(table.Row{i + 1, clip(it.Title), it.CanonicalID, it.RawID, deref(it.EpisodeMarker), deref(it.RatingValue)})
	}
	t.Render()
}

func renderListing(w io.Writer, res domain.ListingResult) {
	if len(res.Items) == 0 {
		fmt.Fprintln(w, "No items.")
	} else {
		renderItems(w, res.Items)
	}
	fmt.Fprintln(w, pagerLine(res.Pagination))
}

func renderPageSet(w io.Writer, set domain.PageSet) {
	renderItems(w, set.Items)
	fmt.Fprintf(w, "pages %v, %s\n", set.Pages, pagerLine(set.Pagination))
	for _, p := range sortedInts(set.Failed) {
		fmt.Fprintf(w, "page %d failed: %s\n", p, set.Failed[p])
	}
}

func renderDetail(w io.Writer, rec domain.DetailRecord) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Title", rec.Title},
		{"Other name", clip(deref(rec.AlternateTitle))},
		{"Status", deref(rec.Status)},
		{"Country", deref(rec.Country)},
		{"Released", deref(rec.ReleaseYear)},
		{"Episodes", deref(rec.TotalEpisode)},
		{"Genres", strings.Join(rec.Genres, ", ")},
		{"Cast", clip(strings.Join(rec.Cast, ", "))},
		{"Thumbnail", deref(rec.ThumbnailURL)},
	})
	t.Render()

	if rec.Synopsis != nil {
		fmt.Fprintln(w, *rec.Synopsis)
	}

	if len(rec.Episodes) == 0 {
		return
	}
	et := newTable(w)
	et.AppendHeader(table.Row{"#", "Episode", "Title", "ID"})
	for i, ep := range rec.Episodes {
		et.AppendRow(table.Row{i + 1, deref(ep.EpisodeNumber), clip(ep.Title), ep.EpisodeID})
	}
	et.Render()
}

func renderHome(w io.Writer, home domain.HomeFeeds) {
	names := make([]string, 0, len(home.Feeds))
	for n := range home.Feeds {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		fmt.Fprintf(w, "== %s ==\n", n)
		renderListing(w, home.Feeds[n])
	}
	for n, code := range home.Failed {
		fmt.Fprintf(w, "feed %s failed: %s\n", n, code)
	}
}

func renderCatalog(w io.Writer, cat domain.Catalog) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Facet", "Name", "Slug"})
	for _, g := range cat.Genres {
		t.AppendRow(table.Row{"genre", g.Name, g.Slug})
	}
	for _, c := range cat.Countries {
		t.AppendRow(table.Row{"country", c.Name, c.Slug})
	}
	t.Render()
}

func renderSources(w io.Writer, infos []domain.SourceInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Base URL", "Kinds", "Feeds"})
	for _, s := range infos {
		t.AppendRow(table.Row{s.ID, s.Name, s.BaseURL, strings.Join(s.Kinds, ","), strings.Join(s.Feeds, ",")})
	}
	t.Render()
}

func sortedInts[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func pickSource(infos []domain.SourceInfo) (string, error) {
	if len(infos) == 0 {
		return "", errors.New("no sources available")
	}

	items := make([]string, len(infos))
	for i, s := range infos {
		items[i] = fmt.Sprintf("%s  (%s)", s.ID, s.BaseURL)
	}

	prompt := promptui.Select{
		Label: "Select source",
		Items: items,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled")
	}
	return infos[idx].ID, nil
}
