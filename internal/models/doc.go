// Package models defines the data passed between the pipeline stages.
//
// The pipeline turns an [Image] into an [Extraction], an [Extraction] of kind [SongQuery] into a ranked list of
// [Candidate] values, the candidates into a [MatchDecision], and finally records an [Outcome] for the image.
//
// All values are immutable once produced; nothing here is shared across images except the resolved [Playlist].
package models
