package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const (
	defaultCatalogBaseURL = "https://api.jamendo.com/v3.0"

	// catalogMaxLimit is the provider's per-request result cap.
	catalogMaxLimit = 200

	defaultCatalogLimit = 10
	defaultTrackOrder   = "popularity_week"
)

var (
	// ErrCatalogUnreachable marks transport-level failures (DNS, refused
	// connections) as opposed to responses the provider actually sent.
	ErrCatalogUnreachable = errors.New("catalog unreachable")

	// ErrMissingClientID is returned when the adapter is constructed without
	// a credential. Fatal to the music-from-catalog feature, not the process.
	ErrMissingClientID = errors.New("catalog client id is required")
)

// CatalogError is a provider-reported failure: either a non-2xx HTTP status
// or an application-level error embedded in a 200 response.
type CatalogError struct {
	StatusCode int
	Message    string
}

func (e *CatalogError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog error: %s", e.Message)
	}
	return fmt.Sprintf("catalog error: status %d", e.StatusCode)
}

// genreTags maps friendly genre keys onto provider tag strings. Keys not in
// the table pass through verbatim so newer provider tags work without a code
// change.
var genreTags = map[string]string{
	"pop":         "pop",
	"rock":        "rock",
	"electronic":  "electronic",
	"hiphop":      "hiphop",
	"jazz":        "jazz",
	"classical":   "classical",
	"country":     "country",
	"metal":       "metal",
	"rnb":         "rnb",
	"reggae":      "reggae",
	"latin":       "latin",
	"ambient":     "ambient",
	"folk":        "folk",
	"punk":        "punk",
	"indie":       "indie",
	"lofi":        "lofi+chillhop",
	"synthwave":   "synthwave+retrowave",
	"eurobeat":    "eurobeat+eurodance",
	"drumandbass": "drumandbass+dnb",
	"chillout":    "chillout+relaxing",
	"house":       "house",
	"techno":      "techno",
	"trance":      "trance",
	"blues":       "blues",
	"funk":        "funk",
}

// Genres lists the known genre keys in sorted order, for slash-command
// choices.
func Genres() []string {
	keys := make([]string, 0, len(genreTags))
	for k := range genreTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CatalogClient fetches royalty-free track metadata and stream URLs from a
// Jamendo-compatible catalog API.
type CatalogClient struct {
	clientID string
	baseURL  string
	httpc    *http.Client
	logger   *slog.Logger
}

// CatalogOption customizes a CatalogClient.
type CatalogOption func(*CatalogClient)

// WithCatalogBaseURL overrides the API base URL, mainly for tests.
func WithCatalogBaseURL(base string) CatalogOption {
	return func(c *CatalogClient) { c.baseURL = base }
}

// WithCatalogHTTPClient overrides the underlying HTTP client.
func WithCatalogHTTPClient(h *http.Client) CatalogOption {
	return func(c *CatalogClient) { c.httpc = h }
}

// WithCatalogLogger sets the component logger.
func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(c *CatalogClient) { c.logger = l }
}

// NewCatalogClient builds a catalog adapter. The client ID is required.
func NewCatalogClient(clientID string, opts ...CatalogOption) (*CatalogClient, error) {
	if clientID == "" {
		return nil, ErrMissingClientID
	}

	c := &CatalogClient{
		clientID: clientID,
		baseURL:  defaultCatalogBaseURL,
		httpc:    &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TracksByGenre fetches up to limit tracks for a genre key, sorted by order
// (defaulting to weekly popularity).
func (c *CatalogClient) TracksByGenre(ctx context.Context, genre string, limit int, order string) ([]Track, error) {
	tag, ok := genreTags[genre]
	if !ok {
		tag = genre
	}
	if order == "" {
		order = defaultTrackOrder
	}

	params := c.baseParams(limit)
	params.Set("tags", tag)
	params.Set("order", order)
	return c.fetchTracks(ctx, params)
}

// SearchTracks fetches tracks matching a free-text query.
func (c *CatalogClient) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	params := c.baseParams(limit)
	params.Set("search", query)
	return c.fetchTracks(ctx, params)
}

// RandomTracks fetches a radio-style random selection, optionally narrowed to
// a known genre. Unknown genre keys are ignored here (random mode has no
// verbatim pass-through; matching "surprise me" semantics).
func (c *CatalogClient) RandomTracks(ctx context.Context, genre string, limit int) ([]Track, error) {
	params := c.baseParams(limit)
	params.Set("order", "random")
	if tag, ok := genreTags[genre]; ok {
		params.Set("tags", tag)
	}
	return c.fetchTracks(ctx, params)
}

// TrackByID fetches a single track, or false when the catalog has no record.
func (c *CatalogClient) TrackByID(ctx context.Context, id string) (Track, bool, error) {
	params := c.baseParams(1)
	params.Set("id", id)

	tracks, err := c.fetchTracks(ctx, params)
	if err != nil {
		return Track{}, false, err
	}
	if len(tracks) == 0 {
		return Track{}, false, nil
	}
	return tracks[0], true, nil
}

func (c *CatalogClient) baseParams(limit int) url.Values {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if limit > catalogMaxLimit {
		limit = catalogMaxLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("include", "musicinfo+licenses")
	params.Set("audioformat", "mp32")
	params.Set("imagesize", "200")
	return params
}

type catalogEnvelope struct {
	Headers struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	} `json:"headers"`
	Results []catalogTrack `json:"results"`
}

type catalogTrack struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArtistName    string `json:"artist_name"`
	AlbumName     string `json:"album_name"`
	Duration      int    `json:"duration"`
	Audio         string `json:"audio"`
	AlbumImage    string `json:"album_image"`
	Image         string `json:"image"`
	LicenseCCURL  string `json:"license_ccurl"`
	ShareURL      string `json:"shareurl"`
	ReleaseDateID string `json:"releasedate"`
	MusicInfo     struct {
		Mood string `json:"mood"`
		Tags struct {
			Genres []string `json:"genres"`
		} `json:"tags"`
	} `json:"musicinfo"`
}

func (c *CatalogClient) fetchTracks(ctx context.Context, params url.Values) ([]Track, error) {
	params.Set("client_id", c.clientID)
	params.Set("format", "json")

	endpoint := c.baseURL + "/tracks?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CatalogError{StatusCode: resp.StatusCode}
	}

	var payload catalogEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog response decode: %w", err)
	}

	if payload.Headers.Status == "error" {
		return nil, &CatalogError{
			StatusCode: resp.StatusCode,
			Message:    payload.Headers.ErrorMessage,
		}
	}

	tracks := make([]Track, 0, len(payload.Results))
	for _, raw := range payload.Results {
		tracks = append(tracks, normalizeTrack(raw))
	}

	c.logger.Debug("catalog fetch", "count", len(tracks))
	return tracks, nil
}

// normalizeTrack maps a raw provider record onto the Track shape, filling
// explicit defaults so downstream code never null-checks optional fields.
func normalizeTrack(raw catalogTrack) Track {
	title := raw.Name
	if title == "" {
		title = "Unknown Title"
	}
	artist := raw.ArtistName
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := raw.AlbumName
	if album == "" {
		album = "Unknown Album"
	}
	artwork := raw.AlbumImage
	if artwork == "" {
		artwork = raw.Image
	}
	license := raw.LicenseCCURL
	if license == "" {
		license = "https://creativecommons.org/licenses/"
	}
	tags := raw.MusicInfo.Tags.Genres
	if tags == nil {
		tags = []string{}
	}

	duration := raw.Duration
	if duration < 0 {
		duration = 0
	}

	return Track{
		ID:         raw.ID,
		Title:      title,
		Artist:     artist,
		Album:      album,
		Duration:   time.Duration(duration) * time.Second,
		StreamURL:  raw.Audio,
		ArtworkURL: artwork,
		LicenseURL: license,
		Tags:       tags,
		Mood:       raw.MusicInfo.Mood,
	}
}
