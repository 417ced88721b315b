package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/showscrape/internal/episodes"
	"github.com/brogergvhs/showscrape/internal/markup"
)

const testBase = "https://drama.example/drama-detail/drama-x"

func loadFixture(t *testing.T, name string) *markup.Document {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return markup.Parse(b)
}

func testListProfile() ListProfile {
	return ListProfile{
		Item: "ul.items li",
		Fields: map[Field]Rule{
			FieldTitle:   {Text("p.name a")},
			FieldRawID:   {{Selector: "p.name a", Attr: "href", Transform: TransformPathID}},
			FieldImage:   ImageRule(".img img"),
			FieldEpisode: {{Selector: ".ep", Parse: episodes.NumberLabel}},
			FieldTime:    {Text(".time")},
		},
	}
}

func testDetailProfile() DetailProfile {
	duration := Labeled(".info p", "Duration")
	duration.Parse = Duration
	year := Labeled(".info p", "Released")
	year.Parse = Year

	return DetailProfile{
		Root: ".details",
		Fields: map[Field]Rule{
			FieldTitle:    {Text(".info h1")},
			FieldAltTitle: {Labeled(".info p", "Other name")},
			FieldImage:    ImageRule(".img img"),
			FieldSynopsis: {Text(".info p.synopsis")},
			FieldCountry:  {Labeled(".info p", "Country")},
			FieldStatus:   {Labeled(".info p", "Status")},
			FieldYear:     {year},
			FieldTotal:    {{Selector: ".info p", Parse: EpisodeCount}},
			FieldDuration: {duration},
			FieldTrailer:  {{Selector: ".trailer iframe", Attr: "src", Transform: TransformURL}},
		},
		Genres: ListRule{Selector: ".info p a[href*='/genre/']"},
		Cast:   ListRule{Selector: ".info p.cast a"},
		Episodes: EpisodeProfile{
			Item:  "ul.episodes li a",
			Title: Rule{Text(".title")},
			Href:  Rule{Attr("", "href")},
			Time:  Rule{Text(".time")},
			Sort:  true,
		},
	}
}

func TestListing_DropsNodesWithoutTitle(t *testing.T) {
	doc := loadFixture(t, "listing.html")
	items := Listing(doc, testListProfile(), "https://drama.example/", nil)

	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Drama X", first.Title)
	assert.Equal(t, "drama-x-episode-12", first.RawID)
	assert.Equal(t, "drama-x", first.CanonicalID)
	require.NotNil(t, first.ImageURL)
	assert.Equal(t, "https://drama.example/covers/drama-x.jpg", *first.ImageURL)
	require.NotNil(t, first.EpisodeMarker)
	assert.Equal(t, "12", *first.EpisodeMarker)
	require.NotNil(t, first.TimeMarker)
	assert.Equal(t, "2 hours ago", *first.TimeMarker)
	assert.Nil(t, first.RatingValue)

	second := items[1]
	assert.Equal(t, "Moon Lovers", second.Title)
	assert.Equal(t, "moon-lovers", second.CanonicalID)
	assert.Equal(t, "https://cdn.drama.example/moon-lovers.jpg", *second.ImageURL)
	assert.Nil(t, second.TimeMarker)
}

func TestListing_NoMatchingNodesIsEmpty(t *testing.T) {
	doc := markup.ParseString(`<html><body><div class="nothing"></div></body></html>`)
	items := Listing(doc, testListProfile(), "https://drama.example/", nil)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	assert.Empty(t, Listing(markup.Parse([]byte("\x00garbage")), testListProfile(), "", nil))
}

func TestListing_CustomCanonicalizer(t *testing.T) {
	doc := loadFixture(t, "listing.html")
	items := Listing(doc, testListProfile(), "https://drama.example/", func(raw string) string { return "c:" + raw })
	require.NotEmpty(t, items)
	assert.Equal(t, "c:drama-x-episode-12", items[0].CanonicalID)
}

func TestDetail_Full(t *testing.T) {
	rec := Detail(loadFixture(t, "detail.html"), testDetailProfile(), testBase)

	assert.Equal(t, "Drama X", rec.Title)
	require.NotNil(t, rec.AlternateTitle)
	assert.Equal(t, "드라마 엑스", *rec.AlternateTitle)
	require.NotNil(t, rec.ThumbnailURL)
	assert.Equal(t, "https://drama.example/posters/drama-x.jpg", *rec.ThumbnailURL)
	require.NotNil(t, rec.TotalEpisode)
	assert.Equal(t, "16", *rec.TotalEpisode)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, "70 min", *rec.Duration)
	require.NotNil(t, rec.ReleaseYear)
	assert.Equal(t, "2023", *rec.ReleaseYear)
	assert.Equal(t, "Korean", *rec.Country)
	assert.Equal(t, "Ongoing", *rec.Status)
	assert.Equal(t, "https://www.youtube.example/embed/abc", *rec.TrailerURL)
	assert.Equal(t, []string{"Romance", "Drama"}, rec.Genres)
	assert.Equal(t, []string{"Actor A", "Actor B"}, rec.Cast)

	require.Len(t, rec.Episodes, 2)
	assert.Equal(t, "drama-x-episode-1", rec.Episodes[0].EpisodeID)
	assert.Equal(t, "1", *rec.Episodes[0].EpisodeNumber)
	assert.Equal(t, "2023-05-01", *rec.Episodes[0].TimeMarker)
	assert.Equal(t, "drama-x-episode-2", rec.Episodes[1].EpisodeID)
}

func TestDetail_MissingFieldsAreNull(t *testing.T) {
	rec := Detail(loadFixture(t, "detail_sparse.html"), testDetailProfile(), testBase)

	assert.Equal(t, "Drama Y", rec.Title)
	assert.Nil(t, rec.TotalEpisode)
	assert.Nil(t, rec.ThumbnailURL)
	assert.Nil(t, rec.Duration)
	assert.Nil(t, rec.TrailerURL)
	require.NotNil(t, rec.Synopsis)
	assert.NotNil(t, rec.Genres)
	assert.Empty(t, rec.Genres)
	assert.Empty(t, rec.Episodes)
}

func TestCatalog_DedupesBySlug(t *testing.T) {
	cat := Catalog(loadFixture(t, "catalog.html"), CatalogProfile{Genres: "ul.genre a", Countries: "ul.country a"})

	require.Len(t, cat.Genres, 2)
	assert.Equal(t, "romance", cat.Genres[0].Slug)
	assert.Equal(t, "Thriller", cat.Genres[1].Name)
	require.Len(t, cat.Countries, 2)
	assert.Equal(t, "japanese", cat.Countries[1].Slug)
}

func TestRule_FallbackOrder(t *testing.T) {
	doc := markup.ParseString(`<div id="c"><img src="/a.jpg" data-src="/lazy.jpg"><span class="x"></span></div>`)
	sel := doc.Find("#c")

	v, ok := ImageRule("img").Apply(sel, "https://h.example/p/")
	require.True(t, ok)
	assert.Equal(t, "https://h.example/lazy.jpg", v)

	_, ok = Rule{Text(".x"), Text(".missing")}.Apply(sel, "")
	assert.False(t, ok)

	v, ok = Rule{Text(".x"), Attr("img", "src")}.Apply(sel, "")
	require.True(t, ok)
	assert.Equal(t, "/a.jpg", v)

	pat := Strategy{Selector: "img", Attr: "src", Pattern: regexp.MustCompile(`/(\w+)\.jpg`)}
	v, ok = Rule{pat}.Apply(sel, "")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = Rule(nil).Apply(sel, "")
	assert.False(t, ok)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://h.example/img/x.jpg", ResolveURL("https://h.example/a/b", "/img/x.jpg"))
	assert.Equal(t, "https://cdn.example/x.jpg", ResolveURL("https://h.example/", "//cdn.example/x.jpg"))
	assert.Equal(t, "", ResolveURL("https://h.example/", "data:image/png;base64,AAAA"))
	assert.Equal(t, "", ResolveURL("https://h.example/", "/img/placeholder.png"))
	assert.Equal(t, "/x.jpg", FirstSrcsetCandidate(" /x.jpg 1x, /y.jpg 2x"))
}

func TestParseUtilities(t *testing.T) {
	cases := []struct {
		name  string
		fn    ParseFunc
		in    string
		want  string
		found bool
	}{
		{"episodes", EpisodeCount, "Episodes: 16", "16", true},
		{"episode singular", EpisodeCount, "episode:3", "3", true},
		{"episodes absent", EpisodeCount, "Sixteen episodes", "", false},
		{"duration min", Duration, "Duration: 45 min", "45 min", true},
		{"duration hr min", Duration, "Duration: 1 hr. 10 min.", "70 min", true},
		{"duration bare", Duration, "2h 5m", "125 min", true},
		{"duration absent", Duration, "Duration: unknown", "", false},
		{"rating", Rating, "Rating: 8.5", "8.5", true},
		{"rating comma", Rating, "8,2/10", "8.2", true},
		{"rating five", Rating, "4.5 / 5", "9.0", true},
		{"rating out of range", Rating, "42", "", false},
		{"rating absent", Rating, "N/A", "", false},
		{"year", Year, "Released: Mar 12, 2019", "2019", true},
		{"year absent", Year, "Released: soon", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := c.fn(c.in)
			assert.Equal(t, c.found, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestListProfile_Drifted(t *testing.T) {
	p := ListProfile{Item: "li", MinItems: 1, EmptyMarker: "p.no-result"}

	assert.True(t, p.Drifted(markup.ParseString(`<ul class="items"></ul>`), 0))
	assert.False(t, p.Drifted(markup.ParseString(`<p class="no-result">Nothing found</p>`), 0))
	assert.False(t, p.Drifted(markup.ParseString(`<ul><li>a</li></ul>`), 1))
	assert.True(t, p.Drifted(nil, 0))

	p.MinItems = 0
	assert.False(t, p.Drifted(markup.ParseString(``), 0))
}
