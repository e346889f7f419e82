package tasks

import (
	"fmt"

	"github.com/desertthunder/snapsong/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current image number (1-based)
	Total   int    // Images in this pass
	Image   string // Image file name, empty for run-level updates
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, [ImageResult] for [Done]
}

// Operation phase enumeration
type Phase int

const (
	Discover Phase = iota
	Extract
	Search
	Disambiguate
	ResolvePlaylist
	AddTrack
	Relocate
	Done
)

func (p Phase) String() string {
	switch p {
	case Discover:
		return "discover"
	case Extract:
		return "extract"
	case Search:
		return "search"
	case Disambiguate:
		return "disambiguate"
	case ResolvePlaylist:
		return "resolve_playlist"
	case AddTrack:
		return "add_track"
	case Relocate:
		return "relocate"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress never blocks; updates are dropped when the receiver lags.
func sendProgress(prog chan<- ProgressUpdate, u ProgressUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- u:
	default:
	}
}

func discoverUpdate(total int, inbox string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Discover,
		Total:   total,
		Message: fmt.Sprintf("Found %d image(s) in %s", total, inbox),
	}
}

func extractUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extract,
		Step:    step,
		Total:   total,
		Image:   name,
		Message: fmt.Sprintf("[%d/%d] Reading %s...", step, total, name),
	}
}

func searchUpdate(step, total int, name, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Search,
		Step:    step,
		Total:   total,
		Image:   name,
		Message: fmt.Sprintf("[%d/%d] Searching for %q...", step, total, query),
	}
}

func disambiguateUpdate(step, total int, name string, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Disambiguate,
		Step:    step,
		Total:   total,
		Image:   name,
		Message: fmt.Sprintf("[%d/%d] Choosing among %d candidate(s)...", step, total, n),
	}
}

func resolvedPlaylistUpdate(pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Message: fmt.Sprintf("Playlist resolved: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addedUpdate(step, total int, name, query string, track models.Candidate) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTrack,
		Step:    step,
		Total:   total,
		Image:   name,
		Message: AddedLine(query, track),
		Data:    track,
	}
}

func relocateUpdate(step, total int, name, dir string, dryRun bool) ProgressUpdate {
	verb := "Moving"
	if dryRun {
		verb = "Would move"
	}
	return ProgressUpdate{
		Phase:   Relocate,
		Step:    step,
		Total:   total,
		Image:   name,
		Message: fmt.Sprintf("[%d/%d] %s %s to %s", step, total, verb, name, dir),
		Data:    dir,
	}
}

func doneUpdate(step, total int, res ImageResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    step,
		Total:   total,
		Image:   res.Image.Name,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, res.Image.Name, res.Outcome),
		Data:    res,
	}
}

// AddedLine formats the confirmation printed for every track added to the playlist.
func AddedLine(query string, track models.Candidate) string {
	return fmt.Sprintf("Added: %s -> %s - %s", query, track.PrimaryArtist(), track.Title)
}
