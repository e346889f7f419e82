package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/snapsong/internal/server"
	"github.com/desertthunder/snapsong/internal/services"
	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization
// and saves the exchanged tokens to the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, svc, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	if err := svc.OAuthenticate(ctx, token); err == nil {
		if user, err := svc.CurrentUser(ctx); err == nil {
			r.logger.Info("authorized spotify account", "user", user.DisplayName, "id", user.ID)
		}
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: snapsong run\n")
	return nil
}

func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, timeout time.Duration, openBrowser bool) (*oauth2.Token, error) {
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthCfg := oauthSrv.GetOAuthConfig()
	addr := shared.CallbackAddr(oauthCfg.RedirectURL, r.config.Server.Host, r.config.Server.Port)

	handler := server.NewOAuthHandler(oauthCfg, state)
	callback, err := server.NewCallbackServer(addr, handler, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Info("waiting for spotify callback", "addr", callback.Addr())

	authURL := oauthSrv.GetAuthURL(state)
	opened := false
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	return callback.Wait(ctx, timeout)
}
