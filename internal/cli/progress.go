package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ScanProgress renders engine progress callbacks as a terminal bar.
// The bar is created on the first callback that reports a total.
type ScanProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	status string
	total  int
	mu     sync.Mutex
}

// NewScanProgress creates a progress renderer. A nil writer renders to stderr.
func NewScanProgress(writer io.Writer) *ScanProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &ScanProgress{writer: writer}
}

// Update has the shape of engine.ProgressFunc.
func (p *ScanProgress) Update(processed, total int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = status
	if total <= 0 {
		return
	}
	if p.bar == nil || total != p.total {
		p.total = total
		p.bar = p.newBar(total)
	}

	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", status))
	if err := p.bar.Set(processed); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Status returns the last status reported.
func (p *ScanProgress) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Finish closes the bar so following output starts on a clean line.
func (p *ScanProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if err := p.bar.Close(); err != nil {
		slog.Warn("Failed to close progress bar", "error", err)
	}
	p.bar = nil
}

func (p *ScanProgress) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scanning messages...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
