package output

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Tracker is a progress bar over the checks of a grading run.
type Tracker struct {
	bar *progressbar.ProgressBar
}

// NewTracker creates a bar for total checks.
func NewTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar}
}

// Describe replaces the label, e.g. with the suite being run.
func (t *Tracker) Describe(label string) {
	t.bar.Describe(label)
}

// Tick advances the bar by one check.
func (t *Tracker) Tick() {
	_ = t.bar.Add(1)
}

// Finish completes and clears the bar.
func (t *Tracker) Finish() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}
