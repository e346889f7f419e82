package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/snapsong/internal/services"
	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistEnsure finds the target playlist by exact name, creating it when missing.
func (r *Runner) PlaylistEnsure(ctx context.Context, cmd *cli.Command) error {
	name := r.config.Pipeline.Playlist
	if v := cmd.String("playlist"); v != "" {
		name = v
	}
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	var mutator services.PlaylistMutator
	if r.deps != nil && r.deps.Playlists != nil {
		mutator = r.deps.Playlists
	} else {
		svc, err := r.authenticatedSpotify(ctx)
		if err != nil {
			return err
		}
		mutator = svc
	}

	r.logger.Info("resolving playlist", "name", name)
	playlist, err := mutator.EnsurePlaylist(ctx, name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, true)
	}
	return r.writePlain("%s\t%s\n", playlist.ID, playlist.Name)
}
