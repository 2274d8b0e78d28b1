// Package cli renders training progress on the terminal.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/ganlab/internal/gan"
	"golang.org/x/term"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("13")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 2)
	epochStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)
	metricsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)
)

// Reporter prints training progress. With color disabled it falls back to
// plain text.
type Reporter struct {
	color bool
	start time.Time
}

// New creates a Reporter.
func New(color bool) *Reporter {
	return &Reporter{color: color, start: time.Now()}
}

// Banner prints a centered program banner.
func (r *Reporter) Banner(title string) {
	if r.color {
		title = bannerStyle.Render(title)
	}
	printCentered(title)
	fmt.Println()
}

// EpochReport prints one line with the metrics of the finished epoch.
func (r *Reporter) EpochReport(epoch, numEpochs int, metrics *gan.Metrics) {
	prefix := fmt.Sprintf("Epoch %*d/%d", numDigits(numEpochs), epoch+1, numEpochs)
	body := fmt.Sprintf("%s  (elapsed %s)", metrics, time.Since(r.start).Round(time.Second))
	if r.color {
		prefix = epochStyle.Render(prefix)
		body = metricsStyle.Render(body)
	}
	fmt.Printf("%s: %s\n", prefix, body)
}

// FinalReport prints the moments of the generated distribution next to the target ones.
func (r *Reporter) FinalReport(fakeMean, fakeStdev, realMean, realStdev float32) {
	msg := fmt.Sprintf("Generated distribution: mean=%.3f stdev=%.3f (target mean=%.3f stdev=%.3f)",
		fakeMean, fakeStdev, realMean, realStdev)
	if r.color {
		msg = resultStyle.Render(msg)
	}
	fmt.Println(msg)
}

func numDigits(n int) int {
	return len(fmt.Sprintf("%d", n))
}

func printCentered(s string) {
	terminalWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || terminalWidth <= 0 {
		fmt.Println(s)
		return
	}
	indent := (terminalWidth - lipgloss.Width(s)) / 2
	if indent < 0 {
		indent = 0
	}
	fmt.Printf("%s%s\n", strings.Repeat(" ", indent), s)
}
