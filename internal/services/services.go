// package services defines the external collaborators of the pipeline and their HTTP implementations
//
// Spotify (catalog search, playlists), OpenAI-compatible chat completions (vision extraction, disambiguation)
package services

import (
	"context"

	"github.com/desertthunder/snapsong/internal/models"
	"golang.org/x/oauth2"
)

// Extractor turns screenshot bytes into a classified [models.Extraction].
type Extractor interface {
	// Extract issues one request to the vision model. Transport and provider failures are returned as errors.
	Extract(ctx context.Context, image []byte) (models.Extraction, error)
}

// CatalogSearcher finds catalog tracks for a free-text query.
type CatalogSearcher interface {
	// SearchTracks returns up to K candidates in provider relevance order. An empty slice is not an error.
	SearchTracks(ctx context.Context, query string) ([]models.Candidate, error)
}

// Oracle picks the candidate that best matches an OCR-derived query.
type Oracle interface {
	// Disambiguate returns [models.Selected] with a valid index or [models.NoMatch].
	// A malformed model answer is reported as an error wrapping shared.ErrOracleProtocol.
	Disambiguate(ctx context.Context, query string, candidates []models.Candidate) (models.MatchDecision, error)
}

// PlaylistMutator resolves playlists by name and appends tracks.
type PlaylistMutator interface {
	// EnsurePlaylist finds a playlist by exact name or creates it.
	EnsurePlaylist(ctx context.Context, name string) (models.Playlist, error)

	// AddTrack appends a track to the playlist. Duplicates are not checked.
	AddTrack(ctx context.Context, playlistID, trackID string) error
}

// OAuthService is implemented by services that authenticate through the OAuth2 authorization code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
	Name() string
}
