package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// Progress reports boosting rounds on a progress bar.
type Progress struct {
	bar         *progressbar.ProgressBar
	writer      io.Writer
	description string
	total       int
}

// NewProgress returns a bar that renders to w once the first round arrives.
func NewProgress(w io.Writer, description string) *Progress {
	return &Progress{writer: w, description: description}
}

func newBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Update moves the bar to round of total. It matches the fit progress
// callback signature.
func (p *Progress) Update(round, total int) {
	switch {
	case p.bar == nil:
		p.total = total
		p.bar = newBar(p.writer, total, p.description)
	case total != p.total:
		p.total = total
		p.bar.ChangeMax(total)
	}
	if err := p.bar.Set(round); err != nil {
		slog.Debug("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar when early stopping ended the fit short.
func (p *Progress) Finish() {
	if p.bar == nil || p.bar.IsFinished() {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Debug("Failed to finish progress bar", "error", err)
	}
}
