package models

import (
	"path/filepath"
	"strings"
)

// Image is a screenshot discovered in the inbox.
type Image struct {
	Name string // Base file name, used in logs and reports
	Path string // Full path at discovery time
}

// NewImage builds an [Image] for name inside dir.
func NewImage(dir, name string) Image {
	return Image{Name: name, Path: filepath.Join(dir, name)}
}

// ExtractionKind tags the result of the vision step.
type ExtractionKind int

const (
	SongQuery ExtractionKind = iota
	UnknownSong
	NoMusic
)

func (k ExtractionKind) String() string {
	switch k {
	case SongQuery:
		return "song_query"
	case UnknownSong:
		return "unknown_song"
	case NoMusic:
		return "no_music"
	default:
		return ""
	}
}

// Extraction is the classified output of the vision model for one image.
type Extraction struct {
	Kind  ExtractionKind
	Query string // Set only for [SongQuery]
	Raw   string // Model text before classification
}

// Candidate is one catalog search result. Its position in the result list is its provider rank.
type Candidate struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
}

// Render formats the candidate as "<artist1> <artist2> - <title>", the form shown to the oracle.
func (c Candidate) Render() string {
	return strings.Join(c.Artists, " ") + " - " + c.Title
}

// PrimaryArtist returns the first credited artist, or "" when there is none.
func (c Candidate) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// NoMatchIndex is the oracle's "none of these" answer.
const NoMatchIndex = -1

// MatchDecision is the oracle's verdict over a candidate list.
type MatchDecision struct {
	Index int
}

// NoMatch returns the decision that no candidate matches.
func NoMatch() MatchDecision {
	return MatchDecision{Index: NoMatchIndex}
}

// Selected returns the decision selecting the candidate at i.
func Selected(i int) MatchDecision {
	return MatchDecision{Index: i}
}

// IsMatch reports whether a candidate was selected.
func (d MatchDecision) IsMatch() bool {
	return d.Index >= 0
}

// Playlist is the resolved target playlist.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Outcome is the terminal classification of one image.
type Outcome int

const (
	Pending Outcome = iota // Not yet classified
	Added
	NoMatchFound
	Unknown
	NoMusicIgnored
	Failed // Adapter error; the image stays in the inbox for a later run
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Added:
		return "added"
	case NoMatchFound:
		return "not_found"
	case Unknown:
		return "unknown_song"
	case NoMusicIgnored:
		return "ignored"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// MarshalText implements [encoding.TextMarshaler] so reports carry the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
