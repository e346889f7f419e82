// Spotify Web API implementation of [CatalogSearcher] and [PlaylistMutator]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
	defaultSearchLimit = 5
	maxPageSize        = 50
)

var defaultSpotifyScopes = []string{
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Owner  Owner  `json:"owner"`
	Public bool   `json:"public"`
	URI    string `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Candidate converts the track into the catalog-neutral [models.Candidate].
func (t SpotifyTrack) Candidate() models.Candidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Candidate{ID: t.ID, Title: t.Name, Artists: artists}
}

// SpotifyService talks to the Spotify Web API.
//
// Uses [oauth2] for authentication; refreshed tokens are reported through the callback set with SetTokenRefreshCallback.
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	market         string
	searchLimit    int
	baseClient     *http.Client
	httpClient     *http.Client
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)

	mu     sync.Mutex
	userID string
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the service at another API root (tests).
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSpotifyEndpoint overrides the OAuth2 authorization and token endpoints.
func WithSpotifyEndpoint(authURL, tokenURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	}
}

// WithSpotifyHTTPClient sets the transport used for API calls and token refreshes.
func WithSpotifyHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if client != nil {
			s.baseClient = client
		}
	}
}

// WithSpotifyLimiter paces outgoing API calls.
func WithSpotifyLimiter(limiter *rate.Limiter) SpotifyOption {
	return func(s *SpotifyService) {
		s.limiter = limiter
	}
}

// WithMarket sets the market used for catalog search.
func WithMarket(market string) SpotifyOption {
	return func(s *SpotifyService) {
		s.market = strings.TrimSpace(market)
	}
}

// WithSearchLimit sets K, the maximum number of search candidates (1..50).
func WithSearchLimit(limit int) SpotifyOption {
	return func(s *SpotifyService) {
		if limit >= 1 && limit <= maxPageSize {
			s.searchLimit = limit
		}
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	scopes := strings.Fields(credentials["scope"])
	if len(scopes) == 0 {
		scopes = defaultSpotifyScopes
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		baseURL:     spotifyBaseURL,
		searchLimit: defaultSearchLimit,
		baseClient:  http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback handler's code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to receive every new token the client obtains.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// OAuthenticate installs token as the session credential. Expired tokens are refreshed on demand.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no spotify token; run the auth command first", shared.ErrNotAuthenticated)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// refreshableTokenSource reports tokens that differ from the last one seen.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// doRequest performs an authenticated JSON request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if s.httpClient == nil {
		return shared.ErrNotAuthenticated
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("spotify %s %s: %w", method, endpoint, err)
		}
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: spotify %s %s: %w", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr spotifyErrorResponse
		message := string(raw)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return &StatusError{Provider: "spotify " + method + " " + endpoint, StatusCode: resp.StatusCode, Body: message}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// SearchTracks queries the catalog for tracks matching query, restricted to the configured market.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string) ([]models.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(s.searchLimit))
	if s.market != "" {
		params.Set("market", s.market)
	}

	var response spotifySearchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search", params, nil, &response); err != nil {
		return nil, err
	}

	items := response.Tracks.Items
	if len(items) > s.searchLimit {
		items = items[:s.searchLimit]
	}

	candidates := make([]models.Candidate, 0, len(items))
	for _, track := range items {
		candidates = append(candidates, track.Candidate())
	}
	return candidates, nil
}

// CurrentUser retrieves the authenticated user's profile. The ID is cached.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return &user, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.userID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists", params, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// FindPlaylist walks the user's playlists and returns the first whose name equals name exactly.
func (s *SpotifyService) FindPlaylist(ctx context.Context, name string) (models.Playlist, error) {
	offset := 0
	for {
		page, err := s.UserPlaylists(ctx, maxPageSize, offset)
		if err != nil {
			return models.Playlist{}, err
		}

		for _, p := range page.Items {
			if p.Name == name {
				return models.Playlist{ID: p.ID, Name: p.Name}, nil
			}
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return models.Playlist{}, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
}

// CreatePlaylist creates a playlist named name owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string) (models.Playlist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return models.Playlist{}, err
	}

	body := map[string]any{"name": name, "public": true}
	var created SpotifySimplePlaylist
	endpoint := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := s.doRequest(ctx, http.MethodPost, endpoint, nil, body, &created); err != nil {
		return models.Playlist{}, err
	}

	return models.Playlist{ID: created.ID, Name: created.Name}, nil
}

// EnsurePlaylist returns the playlist named name, creating it when absent.
func (s *SpotifyService) EnsurePlaylist(ctx context.Context, name string) (models.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return models.Playlist{}, fmt.Errorf("%w: empty playlist name", shared.ErrInvalidInput)
	}

	playlist, err := s.FindPlaylist(ctx, name)
	if err == nil {
		return playlist, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return models.Playlist{}, err
	}

	return s.CreatePlaylist(ctx, name)
}

// AddTrack appends one track to the playlist.
func (s *SpotifyService) AddTrack(ctx context.Context, playlistID, trackID string) error {
	if playlistID == "" || trackID == "" {
		return fmt.Errorf("%w: playlist and track ids are required", shared.ErrInvalidInput)
	}

	body := map[string][]string{"uris": {"spotify:track:" + trackID}}
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return s.doRequest(ctx, http.MethodPost, endpoint, nil, body, nil)
}
