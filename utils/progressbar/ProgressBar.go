// Package progressbar renders text progress bars for log lines
package progressbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/samuelfneumann/breakoutdqn/utils/floatutils"
)

// ProgressBar renders the progress towards a fixed budget, e.g. the
// training frames of a run. It does not print anything itself, so that
// the rendered bar can be attached to structured log lines.
type ProgressBar struct {
	width     int
	max       int
	startTime time.Time
}

// New returns a new ProgressBar that is width characters wide and
// reaches 100% at max
func New(width, max int) *ProgressBar {
	return &ProgressBar{
		width:     width,
		max:       max,
		startTime: time.Now(),
	}
}

// Fraction returns the fraction of the budget used at current, clamped
// to [0, 1]
func (p *ProgressBar) Fraction(current int) float64 {
	if p.max <= 0 {
		return 1
	}
	return floatutils.Clip(float64(current)/float64(p.max), 0, 1)
}

// Bar returns the bar at current, e.g. "|███   | 50.00%"
func (p *ProgressBar) Bar(current int) string {
	f := p.Fraction(current)
	filled := int(f * float64(p.width))

	var b strings.Builder
	b.WriteString("|")
	b.WriteString(strings.Repeat("█", filled))
	b.WriteString(strings.Repeat(" ", p.width-filled))
	fmt.Fprintf(&b, "| %.2f%%", f*100)
	return b.String()
}

// String returns the bar at current followed by the time elapsed since
// the ProgressBar was created
func (p *ProgressBar) String(current int) string {
	return fmt.Sprintf("%v [elapsed: %v]", p.Bar(current),
		time.Since(p.startTime).Truncate(time.Second))
}
