package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// WatchOpts configures [Pipeline.Watch].
type WatchOpts struct {
	Debounce time.Duration    // Quiet period after the last event before a pass starts
	OnPass   func(*RunResult) // Called after every pass, including the initial one
	OnError  func(err error)  // Called for pass and watcher errors; watching continues
}

// Watch processes the inbox once, then again whenever new files settle, until ctx is cancelled.
//
// Events are coalesced: a burst of writes triggers one pass after Debounce of quiet.
// Images left in place as no music are not re-read until they are written again.
// The inbox lock is held for the whole session.
func (p *Pipeline) Watch(ctx context.Context, prog chan<- ProgressUpdate, opts WatchOpts) error {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	lock, err := p.lock()
	if err != nil {
		return err
	}
	defer p.unlock(lock)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(p.opts.Inbox); err != nil {
		return fmt.Errorf("watch %s: %w", p.opts.Inbox, err)
	}

	ignored := make(map[string]bool)
	skip := func(name string) bool { return ignored[name] }

	runPass := func() {
		res, err := p.pass(ctx, prog, skip)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("pass failed", "err", err)
			if opts.OnError != nil {
				opts.OnError(err)
			}
		}
		if res == nil {
			return
		}
		for _, r := range res.Results {
			if r.Outcome == models.NoMusicIgnored {
				ignored[r.Image.Name] = true
			}
		}
		if opts.OnPass != nil {
			opts.OnPass(res)
		}
	}

	runPass()
	p.logger.Info("watching inbox", "path", p.opts.Inbox, "debounce", opts.Debounce)

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("watcher stopping")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !p.isImageEvent(ev) {
				continue
			}
			delete(ignored, filepath.Base(ev.Name))
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(opts.Debounce)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("fsnotify error", "err", err)
			if opts.OnError != nil {
				opts.OnError(err)
			}

		case <-debounceTimer.C:
			if pending {
				pending = false
				runPass()
			}
		}
	}
}

// isImageEvent reports whether ev may have added a file worth processing.
func (p *Pipeline) isImageEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	if filepath.Dir(ev.Name) != filepath.Clean(p.opts.Inbox) {
		return false
	}
	return !strings.HasPrefix(filepath.Base(ev.Name), ".")
}
