package sources

import (
	"regexp"

	"github.com/brogergvhs/showscrape/internal/episodes"
	"github.com/brogergvhs/showscrape/internal/extract"
	"github.com/brogergvhs/showscrape/internal/paginate"
	"github.com/brogergvhs/showscrape/internal/query"
)

// Builtin returns a registry with the bundled sources. Base URLs and header
// profile names can be overridden from configuration afterwards.
func Builtin() *Registry {
	r := NewRegistry()
	_ = r.Register(Drama())
	_ = r.Register(Manga())
	return r
}

// Drama is an episodic video catalogue: listing by recency, per-episode
// anchors that canonicalize to the series, and an AJAX suggest endpoint.
func Drama() *Source {
	items := extract.ListProfile{
		Item: "ul.list-episode-item li",
		Fields: map[extract.Field]extract.Rule{
			extract.FieldTitle: {
				extract.Text("h3.title"),
				extract.Attr("a.img", "title"),
				extract.Attr("img", "alt"),
			},
			extract.FieldRawID: {
				{Selector: "a.img", Attr: "href", Transform: extract.TransformPathID},
				{Selector: "a[href]", Attr: "href", Transform: extract.TransformPathID},
			},
			extract.FieldImage:   extract.ImageRule("img"),
			extract.FieldEpisode: {{Selector: "span.ep", Parse: episodes.NumberLabel}},
			extract.FieldTime:    {extract.Text("span.time")},
			extract.FieldRating:  {{Selector: "span.rating", Parse: extract.Rating}},
		},
		MinItems:    1,
		EmptyMarker: "p.no-result, .empty-result",
	}
	pager := paginate.Rule{Container: "ul.pagination"}
	filters := map[query.Filter]string{
		query.FilterCountry: "country",
		query.FilterGenre:   "genre",
		query.FilterYear:    "year",
		query.FilterSort:    "sort",
	}

	searchParams := map[query.Filter]string{query.FilterText: "keyword"}
	for k, v := range filters {
		searchParams[k] = v
	}

	feed := func(name, path string) Feed {
		return Feed{
			Name: name,
			Endpoint: ListEndpoint{
				Dialect: query.Dialect{Path: path, PageParam: "page", OmitFirstPage: true},
				Profile: items,
				Pager:   pager,
			},
		}
	}

	duration := extract.Labeled(".info p", "Duration")
	duration.Parse = extract.Duration
	year := extract.Labeled(".info p", "Released")
	year.Parse = extract.Year

	return &Source{
		ID:            "drama",
		Name:          "Drama",
		BaseURL:       "https://drama.example",
		HeaderProfile: "drama",
		Listing: ListEndpoint{
			Dialect: query.Dialect{Path: "/recently-added", Params: filters, PageParam: "page"},
			Profile: items,
			Pager:   pager,
		},
		Search: ListEndpoint{
			Dialect: query.Dialect{Path: "/search", Params: searchParams, PageParam: "page", Static: map[string]string{"type": "movies"}},
			Profile: items,
			Pager:   pager,
		},
		Detail: DetailEndpoint{
			Path: "/drama-detail/{id}",
			Profile: extract.DetailProfile{
				Root: ".details",
				Fields: map[extract.Field]extract.Rule{
					extract.FieldTitle:    {extract.Text(".info h1"), extract.Attr(".img img", "alt")},
					extract.FieldAltTitle: {extract.Labeled(".info p", "Other name")},
					extract.FieldImage:    extract.ImageRule(".img img"),
					extract.FieldSynopsis: {extract.Text(".info p.synopsis"), extract.Text(".info .description")},
					extract.FieldCountry:  {extract.Labeled(".info p", "Country")},
					extract.FieldStatus:   {extract.Labeled(".info p", "Status")},
					extract.FieldYear:     {year},
					extract.FieldTotal: {
						{Selector: ".info p", Parse: extract.EpisodeCount},
						{Selector: ".info", Parse: extract.EpisodeCount},
					},
					extract.FieldDuration: {duration},
					extract.FieldTrailer:  {{Selector: ".trailer iframe", Attr: "src", Transform: extract.TransformURL}},
				},
				Genres: extract.ListRule{Selector: ".info p a[href*='/genre/']"},
				Cast:   extract.ListRule{Selector: ".info p.cast a, .list-star .name"},
				Episodes: extract.EpisodeProfile{
					Item:  "ul.all-episode li a",
					Title: extract.Rule{extract.Text("h3.title"), extract.Attr("", "title")},
					Href:  extract.Rule{extract.Attr("", "href")},
					Time:  extract.Rule{extract.Text("span.time")},
					Sort:  true,
				},
			},
		},
		Home: []Feed{
			feed("recent", "/recently-added"),
			feed("movies", "/recently-added-movie"),
			feed("kshow", "/recently-added-kshow"),
			feed("popular", "/most-popular-drama"),
		},
		Catalog: &CatalogEndpoint{
			Path: "/drama-list",
			Profile: extract.CatalogProfile{
				Genres:    "ul.genres a[href*='/genre/']",
				Countries: "ul.countries a[href*='/country/']",
			},
		},
		Suggest: &SuggestEndpoint{
			Dialect:       query.Dialect{Path: "/ajax/suggest", Params: map[query.Filter]string{query.FilterText: "keyword"}},
			HeaderProfile: "drama-ajax",
			StatusField:   "status",
			HTMLField:     "html",
			Profile: extract.ListProfile{
				Item: "li",
				Fields: map[extract.Field]extract.Rule{
					extract.FieldTitle: {extract.Text("a"), extract.Attr("a", "title")},
					extract.FieldRawID: {{Selector: "a", Attr: "href", Transform: extract.TransformPathID}},
					extract.FieldImage: extract.ImageRule("img"),
				},
			},
		},
	}
}

var chaptersLabel = regexp.MustCompile(`(?i)\bchapters?\s*:\s*(\d+)`)

// Manga is a chapter-based catalogue. Chapter ids canonicalize to the
// series and pages are addressed by path suffix.
func Manga() *Source {
	items := extract.ListProfile{
		Item: "div.manga-list .manga-item",
		Fields: map[extract.Field]extract.Rule{
			extract.FieldTitle:   {extract.Text(".manga-title a"), extract.Attr(".cover img", "alt")},
			extract.FieldRawID:   {{Selector: ".manga-title a", Attr: "href", Transform: extract.TransformPathID}},
			extract.FieldImage:   extract.ImageRule(".cover img"),
			extract.FieldEpisode: {{Selector: ".latest-chapter a", Parse: episodes.NumberLabel}},
			extract.FieldTime:    {extract.Text(".latest-chapter .date")},
			extract.FieldRating:  {{Selector: ".score", Parse: extract.Rating}},
		},
		MinItems:    1,
		EmptyMarker: ".no-manga",
	}
	pager := paginate.Rule{Container: ".pager"}

	status := extract.Labeled(".meta li", "Status")
	year := extract.Labeled(".meta li", "Published")
	year.Parse = extract.Year

	return &Source{
		ID:              "manga",
		Name:            "Manga",
		BaseURL:         "https://manga.example",
		HeaderProfile:   "manga",
		CanonicalTokens: []string{"chapter"},
		Listing: ListEndpoint{
			Dialect: query.Dialect{
				Path:          "/manga-list",
				Params:        map[query.Filter]string{query.FilterGenre: "genre", query.FilterSort: "order", query.FilterYear: "year"},
				PagePath:      "/page/{page}",
				OmitFirstPage: true,
			},
			Profile: items,
			Pager:   pager,
		},
		Search: ListEndpoint{
			Dialect: query.Dialect{Path: "/search", Params: map[query.Filter]string{query.FilterText: "q", query.FilterGenre: "genre"}, PageParam: "p"},
			Profile: items,
			Pager:   pager,
		},
		Detail: DetailEndpoint{
			Path: "/manga/{id}",
			Profile: extract.DetailProfile{
				Root: ".manga-detail",
				Fields: map[extract.Field]extract.Rule{
					extract.FieldTitle:    {extract.Text("h1.title")},
					extract.FieldAltTitle: {extract.Labeled(".meta li", "Alternative")},
					extract.FieldImage:    extract.ImageRule(".cover img"),
					extract.FieldSynopsis: {extract.Text(".summary")},
					extract.FieldCountry:  {extract.Labeled(".meta li", "Type")},
					extract.FieldStatus:   {status},
					extract.FieldYear:     {year},
					extract.FieldTotal: {
						{Selector: ".meta li", Pattern: chaptersLabel},
					},
				},
				Genres: extract.ListRule{Selector: ".genres a"},
				Cast:   extract.ListRule{Selector: ".meta li.author a"},
				Episodes: extract.EpisodeProfile{
					Item:   "ul.chapter-list li a",
					Title:  extract.Rule{extract.Text(".chapter-name"), extract.Text("")},
					Href:   extract.Rule{extract.Attr("", "href")},
					Time:   extract.Rule{extract.Text(".chapter-date")},
					Number: extract.Rule{{Selector: ".chapter-name", Parse: episodes.NumberLabel}},
					Sort:   true,
				},
			},
		},
		Home: []Feed{
			{Name: "latest", Endpoint: ListEndpoint{Dialect: query.Dialect{Path: "/latest"}, Profile: items, Pager: pager}},
			{Name: "popular", Endpoint: ListEndpoint{Dialect: query.Dialect{Path: "/manga-list", Params: map[query.Filter]string{query.FilterSort: "order"}}, Profile: items, Pager: pager}, Filters: map[query.Filter]string{query.FilterSort: "views"}},
		},
		Catalog: &CatalogEndpoint{
			Path:    "/genres",
			Profile: extract.CatalogProfile{Genres: ".genre-list a[href*='/genre/']"},
		},
	}
}
