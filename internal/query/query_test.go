package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchDialect = Dialect{
	Path: "/search.html",
	Params: map[Filter]string{
		FilterText:    "keyword",
		FilterCountry: "country",
		FilterGenre:   "genre",
		FilterYear:    "year",
		FilterSort:    "sort",
	},
	PageParam: "page",
}

func TestBuild_RoundTrip(t *testing.T) {
	queries := []SearchQuery{
		New().WithText("moon").WithPage(2),
		New().WithText("moon lovers & sun").WithCountry("korean").WithGenre("romance").WithYear("2023").WithSort("latest"),
		New().WithGenre("thriller").WithText(""),
		New(),
	}
	for _, q := range queries {
		u, err := Build("https://drama.example", searchDialect, q)
		require.NoError(t, err)

		parsed, err := url.Parse(u.String())
		require.NoError(t, err)
		back := Decode(parsed, searchDialect)

		assert.Equal(t, q.Present(), back.Present(), "query %s", q)
		assert.Equal(t, q.Page(), back.Page(), "query %s", q)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := New().WithGenre("romance").WithText("moon").WithPage(3)
	b := New().WithPage(3).WithText("moon").WithGenre("romance")

	ua, err := Build("https://drama.example/", searchDialect, a)
	require.NoError(t, err)
	ub, err := Build("https://drama.example/", searchDialect, b)
	require.NoError(t, err)
	assert.Equal(t, ua.String(), ub.String())
	assert.Equal(t, "https://drama.example/search.html?genre=romance&keyword=moon&page=3", ua.String())
}

func TestBuild_OmittedVersusEmpty(t *testing.T) {
	omitted, err := Build("https://drama.example", searchDialect, New().WithText("x"))
	require.NoError(t, err)
	empty, err := Build("https://drama.example", searchDialect, New().WithText("x").WithCountry(""))
	require.NoError(t, err)

	assert.NotContains(t, omitted.RawQuery, "country")
	assert.Contains(t, empty.RawQuery, "country=")
	assert.NotEqual(t, omitted.String(), empty.String())
}

func TestBuild_DoesNotClampPage(t *testing.T) {
	u, err := Build("https://drama.example", searchDialect, New().WithPage(0))
	require.NoError(t, err)
	assert.Equal(t, "0", u.Query().Get("page"))

	u, err = Build("https://drama.example", searchDialect, New().WithPage(-4))
	require.NoError(t, err)
	assert.Equal(t, "-4", u.Query().Get("page"))
}

func TestBuild_PagePath(t *testing.T) {
	d := Dialect{
		Path:          "/genre/all",
		Params:        map[Filter]string{FilterSort: "order"},
		PagePath:      "/page/{page}",
		OmitFirstPage: true,
		Static:        map[string]string{"type": "list"},
	}

	u, err := Build("https://manga.example", d, New().WithSort("views"))
	require.NoError(t, err)
	assert.Equal(t, "https://manga.example/genre/all?order=views&type=list", u.String())

	u, err = Build("https://manga.example", d, New().WithSort("views").WithPage(4))
	require.NoError(t, err)
	assert.Equal(t, "https://manga.example/genre/all/page/4?order=views&type=list", u.String())
	assert.Equal(t, 4, Decode(u, d).Page())
}

func TestBuild_BadBase(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative/only", "http://[::1"} {
		_, err := Build(base, searchDialect, New())
		assert.Error(t, err, "base %q", base)
	}
}

func TestSearchQuery_Immutable(t *testing.T) {
	base := New().WithText("moon")
	derived := base.WithGenre("romance").WithText("sun")

	v, _ := base.Get(FilterText)
	assert.Equal(t, "moon", v)
	_, set := base.Get(FilterGenre)
	assert.False(t, set)

	v, _ = derived.Get(FilterText)
	assert.Equal(t, "sun", v)
	assert.Equal(t, 1, derived.Page())
}
