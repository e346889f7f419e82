package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/services"
	"golang.org/x/sync/singleflight"
)

// playlistResolver resolves the target playlist once per pipeline.
//
// Concurrent callers share a single in-flight EnsurePlaylist call; a successful
// result is cached, a failure is not.
type playlistResolver struct {
	mutator services.PlaylistMutator
	name    string
	timeout time.Duration

	group singleflight.Group
	mu    sync.Mutex
	cache *models.Playlist
}

func newPlaylistResolver(mutator services.PlaylistMutator, name string, timeout time.Duration) *playlistResolver {
	return &playlistResolver{mutator: mutator, name: name, timeout: timeout}
}

// Resolve returns the cached playlist or ensures it exists.
func (r *playlistResolver) Resolve(ctx context.Context, prog chan<- ProgressUpdate) (models.Playlist, error) {
	if pl, ok := r.cached(); ok {
		return pl, nil
	}

	v, err, _ := r.group.Do(r.name, func() (any, error) {
		if pl, ok := r.cached(); ok {
			return pl, nil
		}

		pl, err := withTimeout(ctx, r.timeout, func(ctx context.Context) (models.Playlist, error) {
			return r.mutator.EnsurePlaylist(ctx, r.name)
		})
		if err != nil {
			return models.Playlist{}, err
		}

		r.mu.Lock()
		r.cache = &pl
		r.mu.Unlock()

		sendProgress(prog, resolvedPlaylistUpdate(pl))
		return pl, nil
	})
	if err != nil {
		return models.Playlist{}, err
	}
	return v.(models.Playlist), nil
}

func (r *playlistResolver) cached() (models.Playlist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		return models.Playlist{}, false
	}
	return *r.cache, true
}

// ResolvePlaylist ensures the configured playlist exists and returns it.
func (p *Pipeline) ResolvePlaylist(ctx context.Context) (models.Playlist, error) {
	return p.playlist.Resolve(ctx, nil)
}
