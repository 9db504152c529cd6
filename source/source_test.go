package source

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/resilience"
)

func TestHTTP_Fetch(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"go","name":"Go"}]`))
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL+"/v1", WithToken("secret"), WithUserAgent("test-agent"))
	require.NoError(t, err)

	body, err := h.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Skills, Params: []string{"web dev"}, Language: "en"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"go","name":"Go"}]`, string(body))
	assert.Equal(t, "/v1/skills/web%20dev", gotPath)
	assert.Equal(t, "lang=en", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "test-agent", gotUA)
}

func TestHTTP_StatusErrors(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL)
	require.NoError(t, err)
	d := catalog.Descriptor{Kind: catalog.Countries, Language: "en"}

	_, err = h.Fetch(context.Background(), d)
	require.Error(t, err)
	assert.False(t, resilience.IsPermanent(err), "a 404 from the API leaves the bundle to answer")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusNotFound, respErr.Status)
	assert.Equal(t, "nope", respErr.Body)

	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable} {
		status = code
		_, err = h.Fetch(context.Background(), d)
		require.Error(t, err)
		assert.False(t, resilience.IsPermanent(err), "status %d", code)
	}
}

func TestHTTP_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h, err := NewHTTP(url)
	require.NoError(t, err)
	_, err = h.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Hobbies, Language: "en"})
	require.Error(t, err)
	assert.False(t, resilience.IsPermanent(err))
}

func TestNewHTTP_InvalidBase(t *testing.T) {
	_, err := NewHTTP("ftp://example.com")
	assert.Error(t, err)
	_, err = NewHTTP("://bad")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview([]byte("abc"), 10))
	assert.Equal(t, "ab[truncated, total: 3 bytes]", preview([]byte("abc"), 2))
}

func TestBundle_Fetch(t *testing.T) {
	fsys := fstest.MapFS{
		"skills_web_en.json": {Data: []byte(`[{"id":"go","name":"Go"}]`)},
		"skills_web_es.json": {Data: []byte(`[{"id":"go","name":"Go (es)"}]`)},
	}
	b := NewBundle(fsys)

	body, err := b.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Skills, Params: []string{"web"}, Language: "es"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "Go (es)")

	body, err = b.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Skills, Params: []string{"web"}, Language: "de"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"Go"`, "falls back to the default language")

	_, err = b.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Skills, Params: []string{"mobile"}, Language: "de"})
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestBundle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DefaultBundle().Fetch(ctx, catalog.Descriptor{Kind: catalog.Skills, Language: "en"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultBundle_DecodesEveryKind(t *testing.T) {
	b := DefaultBundle()
	ctx := context.Background()
	decoders := map[catalog.Kind]func([]byte) (int, error){
		catalog.Skills:      count[catalog.Skill](catalog.Skills),
		catalog.Countries:   count[catalog.Country](catalog.Countries),
		catalog.Cities:      count[catalog.City](catalog.Cities),
		catalog.Occupations: count[catalog.Occupation](catalog.Occupations),
		catalog.Hobbies:     count[catalog.Hobby](catalog.Hobbies),
	}
	for kind, decode := range decoders {
		body, err := b.Fetch(ctx, catalog.Descriptor{Kind: kind, Language: "fr"})
		require.NoError(t, err, kind)
		n, err := decode(body)
		require.NoError(t, err, kind)
		assert.Positive(t, n, kind)
	}
}

func count[T any](kind catalog.Kind) func([]byte) (int, error) {
	return func(b []byte) (int, error) {
		items, err := catalog.Decode[T](kind, b)
		return len(items), err
	}
}

func TestFunc(t *testing.T) {
	var src catalog.Source = Func(func(_ context.Context, d catalog.Descriptor) ([]byte, error) {
		return []byte(d.Key()), nil
	})
	body, err := src.Fetch(context.Background(), catalog.Descriptor{Kind: catalog.Cities, Params: []string{"DE"}, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "cities_DE_en", string(body))
}
