package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuman(t *testing.T) {
	assert.Equal(t, "512 B", Human(512))
	assert.Equal(t, "1.50 KB", Human(1536))
	assert.Equal(t, "2.00 MB", Human(2<<20))
	assert.Equal(t, "1.00 GB", Human(1<<30))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 page", Plural(1, "page"))
	assert.Equal(t, "0 pages", Plural(0, "page"))
	assert.Equal(t, "3 items", Plural(3, "item"))
}

func TestAtomicFile_CommitAndAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.jsonl")

	f, err := CreateAtomic(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("{}\n"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "final file must not exist before commit")

	require.NoError(t, f.Commit())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(b))
	_, err = os.Stat(path + TempSuffix)
	assert.True(t, os.IsNotExist(err))

	aborted := filepath.Join(dir, "gone.jsonl")
	g, err := CreateAtomic(aborted)
	require.NoError(t, err)
	g.Abort()
	g.Abort()
	_, err = os.Stat(aborted + TempSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jsonl"+TempSuffix), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jsonl"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c"+TempSuffix), 0755))

	removed := CleanupTempFiles(dir)
	assert.Equal(t, []string{filepath.Join(dir, "a.jsonl"+TempSuffix)}, removed)
	assert.FileExists(t, filepath.Join(dir, "b.jsonl"))
	assert.DirExists(t, filepath.Join(dir, "c"+TempSuffix))

	assert.Nil(t, CleanupTempFiles(filepath.Join(dir, "missing")))
}

func TestNewHTTPClient_DefaultUserAgentOnly(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPClientOptions{UserAgent: "fallback-agent"})
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "profile-agent")
	resp, err = c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{"fallback-agent", "profile-agent"}, got)
}

func TestNewHTTPClient_BadProxy(t *testing.T) {
	_, err := NewHTTPClient(HTTPClientOptions{Proxy: "://nope"})
	assert.Error(t, err)
}
