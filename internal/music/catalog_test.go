package music

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T, handler http.HandlerFunc) (*CatalogClient, *url.Values) {
	t.Helper()

	var lastQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewCatalogClient("test-client-id", WithCatalogBaseURL(srv.URL))
	require.NoError(t, err)
	return client, &lastQuery
}

func okTracksHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

const emptyResults = `{"headers":{"status":"success","code":0},"results":[]}`

func TestNewCatalogClientRequiresClientID(t *testing.T) {
	_, err := NewCatalogClient("")
	assert.ErrorIs(t, err, ErrMissingClientID)
}

func TestCatalogTracksByGenreMapsTags(t *testing.T) {
	client, query := newTestCatalog(t, okTracksHandler(emptyResults))

	_, err := client.TracksByGenre(context.Background(), "lofi", 5, "")
	require.NoError(t, err)
	assert.Equal(t, "lofi+chillhop", query.Get("tags"))
	assert.Equal(t, "popularity_week", query.Get("order"))
	assert.Equal(t, "5", query.Get("limit"))
	assert.Equal(t, "test-client-id", query.Get("client_id"))
	assert.Equal(t, "mp32", query.Get("audioformat"))
}

func TestCatalogTracksByGenreUnknownGenrePassesThrough(t *testing.T) {
	client, query := newTestCatalog(t, okTracksHandler(emptyResults))

	_, err := client.TracksByGenre(context.Background(), "vaporwave", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "vaporwave", query.Get("tags"))
	assert.Equal(t, "10", query.Get("limit"), "zero limit falls back to the default")
}

func TestCatalogLimitClamps(t *testing.T) {
	client, query := newTestCatalog(t, okTracksHandler(emptyResults))

	_, err := client.SearchTracks(context.Background(), "piano", 5000)
	require.NoError(t, err)
	assert.Equal(t, "200", query.Get("limit"))
	assert.Equal(t, "piano", query.Get("search"))
}

func TestCatalogRandomTracks(t *testing.T) {
	client, query := newTestCatalog(t, okTracksHandler(emptyResults))

	_, err := client.RandomTracks(context.Background(), "jazz", 10)
	require.NoError(t, err)
	assert.Equal(t, "random", query.Get("order"))
	assert.Equal(t, genreTags["jazz"], query.Get("tags"))

	_, err = client.RandomTracks(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, query.Get("tags"), "no genre means no tag filter")
}

func TestCatalogNormalizesTracks(t *testing.T) {
	body := `{
		"headers": {"status": "success", "code": 0},
		"results": [
			{
				"id": "168",
				"name": "Nocturne",
				"artist_name": "TriFace",
				"album_name": "First Album",
				"duration": 183,
				"audio": "https://cdn.example.com/168.mp3",
				"album_image": "https://cdn.example.com/168.jpg",
				"license_ccurl": "https://creativecommons.org/licenses/by-nc/4.0/",
				"musicinfo": {"mood": "calm", "tags": {"genres": ["ambient", "piano"]}}
			},
			{
				"id": "169",
				"duration": -1,
				"audio": "https://cdn.example.com/169.mp3",
				"image": "https://cdn.example.com/fallback.jpg"
			}
		]
	}`
	client, _ := newTestCatalog(t, okTracksHandler(body))

	tracks, err := client.SearchTracks(context.Background(), "nocturne", 10)
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	full := tracks[0]
	assert.Equal(t, "168", full.ID)
	assert.Equal(t, "Nocturne", full.Title)
	assert.Equal(t, "TriFace", full.Artist)
	assert.Equal(t, "3:03", full.DurationFormatted())
	assert.Equal(t, "https://cdn.example.com/168.mp3", full.StreamURL)
	assert.Equal(t, []string{"ambient", "piano"}, full.Tags)
	assert.Equal(t, "calm", full.Mood)

	sparse := tracks[1]
	assert.Equal(t, "Unknown Title", sparse.Title)
	assert.Equal(t, "Unknown Artist", sparse.Artist)
	assert.Equal(t, "Unknown Album", sparse.Album)
	assert.Equal(t, "https://cdn.example.com/fallback.jpg", sparse.ArtworkURL)
	assert.Equal(t, "https://creativecommons.org/licenses/", sparse.LicenseURL)
	assert.Equal(t, "--:--", sparse.DurationFormatted())
	assert.NotNil(t, sparse.Tags)
}

func TestCatalogErrorEnvelope(t *testing.T) {
	body := `{"headers":{"status":"error","code":5,"error_message":"invalid client_id"},"results":[]}`
	client, _ := newTestCatalog(t, okTracksHandler(body))

	_, err := client.SearchTracks(context.Background(), "x", 10)
	require.Error(t, err)

	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "invalid client_id", catErr.Message)
}

func TestCatalogHTTPError(t *testing.T) {
	client, _ := newTestCatalog(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.SearchTracks(context.Background(), "x", 10)
	require.Error(t, err)

	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, http.StatusServiceUnavailable, catErr.StatusCode)
}

func TestCatalogUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close() // nothing listening anymore

	client, err := NewCatalogClient("test-client-id", WithCatalogBaseURL(base))
	require.NoError(t, err)

	_, err = client.SearchTracks(context.Background(), "x", 10)
	assert.True(t, errors.Is(err, ErrCatalogUnreachable))
}

func TestCatalogTrackByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		body := `{"headers":{"status":"success"},"results":[{"id":"42","name":"Found","audio":"u"}]}`
		client, query := newTestCatalog(t, okTracksHandler(body))

		track, ok, err := client.TrackByID(context.Background(), "42")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Found", track.Title)
		assert.Equal(t, "42", query.Get("id"))
	})

	t.Run("missing", func(t *testing.T) {
		client, _ := newTestCatalog(t, okTracksHandler(emptyResults))

		_, ok, err := client.TrackByID(context.Background(), "404")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGenresSorted(t *testing.T) {
	genres := Genres()
	assert.Len(t, genres, len(genreTags))
	for i := 1; i < len(genres); i++ {
		assert.LessOrEqual(t, genres[i-1], genres[i])
	}
}
