// Package services implements the external collaborators of the snapsong pipeline.
//
// # Collaborators
//
// The pipeline depends only on the interfaces in services.go:
//   - [Extractor] : screenshot bytes to a tagged [models.Extraction]
//   - [CatalogSearcher] : free-text query to at most K [models.Candidate] values
//   - [Oracle] : query plus candidates to a [models.MatchDecision]
//   - [PlaylistMutator] : playlist lookup/creation and track append
//
// # Spotify Implementation
//
// [SpotifyService] implements [CatalogSearcher], [PlaylistMutator] and [OAuthService].
// It uses OAuth2 with automatic token refresh; new tokens are reported through SetTokenRefreshCallback
// so the caller can persist them.
//
// # Chat Implementation
//
// [ChatClient] speaks the OpenAI-compatible chat completions protocol.
// [VisionExtractor] and [LLMOracle] each build one request per call on top of it.
//
// No component retries. Calls are paced by an optional [rate.Limiter] and bounded by the caller's context.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : OAuthenticate() not called
//   - [shared.ErrTokenExpired] : provider returned 401
//   - [shared.ErrAPIRequest] : non-2xx response or undecodable body
//   - [shared.ErrPlaylistNotFound] : no playlist with the exact name
//   - [shared.ErrOracleProtocol] : oracle answer was not an in-range integer or -1
//   - [shared.ErrEmptyExtraction] : model returned no text; the oracle reports it as [shared.ErrOracleProtocol]
package services
