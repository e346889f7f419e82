// Package tasks runs the screenshot pipeline with real-time progress reporting.
//
// # Pipeline
//
// [Pipeline.Run] takes the inbox lock, lists the inbox in lexicographic order and drives each
// image through a fixed state machine:
//
//  1. Extract : vision model classifies the screenshot
//     - No music: image is left in place
//     - Unknown song: image moves to the not-found directory
//  2. Search : catalog search for the extracted query
//     - No candidates: image moves to the not-found directory, the oracle is not consulted
//  3. Disambiguate : the oracle picks a candidate index or -1
//     - -1 or a malformed answer: image moves to the not-found directory
//  4. Add : the playlist is resolved (once per pipeline) and the track appended;
//     the image moves to the found directory
//
// Any adapter failure ends that image as [models.Failed]; the image stays in the inbox and
// the run continues. Every adapter call is bounded by PipelineOpts.CallTimeout.
//
// # Concurrency
//
// One worker processes images strictly in order. With more workers, images are fanned out to a
// bounded pool and results are still returned in listing order. Playlist resolution goes through
// a singleflight group so at most one creation call happens per run.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// Updates use select with default to prevent blocking.
//
// # Watch Mode
//
// [Pipeline.Watch] runs a pass, then another whenever fsnotify reports new files in the inbox
// and the debounce period elapses without further events.
package tasks
