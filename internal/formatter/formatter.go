// package formatter renders pipeline run results as reports (CSV, Markdown, JSON) and console output
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/shared"
	"github.com/desertthunder/snapsong/internal/tasks"
)

// Report formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ReportEntry is the flattened, serializable form of one [tasks.ImageResult].
type ReportEntry struct {
	Image       string         `json:"image"`
	Extracted   string         `json:"extracted"`
	Kind        string         `json:"kind"`
	Candidates  int            `json:"candidates"`
	Outcome     models.Outcome `json:"outcome"`
	TrackID     string         `json:"track_id,omitempty"`
	Track       string         `json:"track,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Relocated   bool           `json:"relocated"`
	Error       string         `json:"error,omitempty"`
}

// Report is the serializable summary of one run.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Added      int           `json:"added"`
	NotFound   int           `json:"not_found"`
	Unknown    int           `json:"unknown_song"`
	Ignored    int           `json:"ignored"`
	Failed     int           `json:"failed"`
	Entries    []ReportEntry `json:"entries"`
}

// NewReport flattens a run result.
func NewReport(run *tasks.RunResult) *Report {
	r := &Report{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Added:      run.Added,
		NotFound:   run.NotFound,
		Unknown:    run.Unknown,
		Ignored:    run.Ignored,
		Failed:     run.Failed,
		Entries:    make([]ReportEntry, 0, len(run.Results)),
	}

	for _, res := range run.Results {
		if res.DryRun {
			r.DryRun = true
		}
		entry := ReportEntry{
			Image:       res.Image.Name,
			Extracted:   strings.TrimSpace(res.Extraction.Raw),
			Kind:        res.Extraction.Kind.String(),
			Candidates:  res.Candidates,
			Outcome:     res.Outcome,
			Destination: res.Destination,
			Relocated:   res.Relocated,
		}
		if res.Outcome == models.Failed {
			entry.Kind = ""
		}
		if res.Track != nil {
			entry.TrackID = res.Track.ID
			entry.Track = res.Track.Render()
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		r.Entries = append(r.Entries, entry)
	}

	return r
}

// ExportToCSV converts a report to CSV with one row per image.
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Image", "Extracted", "Outcome", "Candidates", "Track ID", "Track", "Destination", "Relocated", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range report.Entries {
		record := []string{
			e.Image,
			e.Extracted,
			e.Outcome.String(),
			strconv.Itoa(e.Candidates),
			e.TrackID,
			e.Track,
			e.Destination,
			strconv.FormatBool(e.Relocated),
			e.Error,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a report to a Markdown document with a summary and a per-image list.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Run %s\n\n", report.RunID))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", report.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))
	if report.DryRun {
		buf.WriteString("**Dry run**: no tracks added, no files moved\n")
	}
	buf.WriteString("\n")

	buf.WriteString("| Added | Not found | Unknown | Ignored | Failed |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	buf.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d |\n\n",
		report.Added, report.NotFound, report.Unknown, report.Ignored, report.Failed))

	buf.WriteString("## Images\n\n")
	for i, e := range report.Entries {
		line := fmt.Sprintf("%d. `%s` [%s]", i+1, e.Image, e.Outcome)
		if e.Extracted != "" {
			line += fmt.Sprintf(" %q", e.Extracted)
		}
		if e.Track != "" {
			line += fmt.Sprintf(" -> %s", e.Track)
		}
		if e.Error != "" {
			line += fmt.Sprintf(" (error: %s)", e.Error)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a report to indented JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// FormatFromPath infers a report format from the file extension, defaulting to JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatJSON
	}
}

// WriteReport renders report in format and writes it to path.
//
// An empty format is inferred from the extension of path.
func WriteReport(report *Report, format, path string) error {
	if path == "" {
		return fmt.Errorf("%w: report path", shared.ErrMissingArgument)
	}
	if format == "" {
		format = FormatFromPath(path)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(report)
	case FormatMarkdown:
		data, err = ExportToMarkdown(report)
	case FormatJSON:
		data, err = ExportToJSON(report)
	default:
		return fmt.Errorf("%w: unsupported report format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
