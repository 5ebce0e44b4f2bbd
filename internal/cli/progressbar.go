package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/jaenvtix/jaenvtix/pkg/download"
)

// downloadBar renders download progress. The bar is created on the first
// report, once the total size is known; an unknown total renders a spinner.
type downloadBar struct {
	w           io.Writer
	description string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newDownloadBar(w io.Writer, description string) *downloadBar {
	return &downloadBar{w: w, description: description}
}

// Report is a download.ProgressFunc.
func (b *downloadBar) Report(p download.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		total := int64(-1)
		if p.Known() {
			total = p.Total
		}
		b.bar = progressbar.NewOptions64(
			total,
			progressbar.OptionSetDescription(b.description),
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(b.w, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	// A restarted attempt reports from zero again.
	b.bar.Set64(p.Downloaded)
}

// Finish completes the bar if one was drawn.
func (b *downloadBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		b.bar.Finish()
	}
}
