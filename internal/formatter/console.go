package formatter

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/snapsong/internal/models"
	"github.com/desertthunder/snapsong/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func NewPalette(t, s, e, w, m string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		muted: NewEm(m),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// outcomeStyle picks the style for a disposition.
func (p *Palette) outcomeStyle(o models.Outcome) lipgloss.Style {
	switch o {
	case models.Added:
		return p.ok
	case models.NoMatchFound, models.Unknown:
		return p.warn
	case models.Failed:
		return p.err
	default:
		return p.muted
	}
}

// DispositionLine renders the per-image audit line: file name, extracted text and final disposition.
func DispositionLine(res tasks.ImageResult) string {
	line := fmt.Sprintf("%s %s", styles.title.Render(res.Image.Name), styles.outcomeStyle(res.Outcome).Render(res.Outcome.String()))

	if res.Extraction.Raw != "" {
		line += fmt.Sprintf(" %q", res.Extraction.Raw)
	}
	if res.Track != nil {
		line += " -> " + res.Track.Render()
	}
	switch {
	case res.Err != nil:
		line += " " + styles.err.Render(res.Err.Error())
	case res.DryRun && res.Destination != "":
		line += " " + styles.muted.Render("(dry run: would move to "+res.Destination+")")
	case res.Relocated:
		line += " " + styles.muted.Render("moved to "+res.Destination)
	}
	return line
}

// SummaryTable renders outcome counts as a rounded table.
func SummaryTable(run *tasks.RunResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Outcome", "Images"})

	rows := []struct {
		outcome models.Outcome
		count   int
	}{
		{models.Added, run.Added},
		{models.NoMatchFound, run.NotFound},
		{models.Unknown, run.Unknown},
		{models.NoMusicIgnored, run.Ignored},
		{models.Failed, run.Failed},
	}
	for _, r := range rows {
		tw.AppendRow(table.Row{r.outcome.String(), strconv.Itoa(r.count)})
	}
	tw.AppendFooter(table.Row{"total", strconv.Itoa(len(run.Results))})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})

	return tw.Render()
}
