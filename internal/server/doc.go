// Package server hosts the short-lived local HTTP server used during Spotify authorization.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware] stack.
// Middleware wraps in registration order, so the first one added sees the request first.
//
// # OAuth Callback
//
// [OAuthHandler] serves the redirect URI of the authorization code flow. It checks the state
// parameter, exchanges the code for a token and delivers exactly one [OAuthResult] on its
// result channel. Later callbacks are rejected.
//
// [CallbackServer] ties the two together: it listens on the configured address, waits for the
// result or a timeout and shuts itself down.
package server
