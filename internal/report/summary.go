// Package report aggregates per-flow labels into the distribution summary
// printed by the batch tools and the replayer. Both paths emit the same
// format so runs are comparable across modes.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Summary tallies final labels and skipped records for one run.
type Summary struct {
	counts  map[string]int64
	Skipped int64
}

// LabelCount is one row of the distribution, ordered by descending count.
type LabelCount struct {
	Label string
	Count int64
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{counts: make(map[string]int64)}
}

// Add tallies one successfully classified flow.
func (s *Summary) Add(finalLabel string) {
	s.counts[finalLabel]++
}

// Skip tallies one record excluded from output (schema, extraction,
// inference, or network failure). Skipped records never abort a run; they
// are reported here instead.
func (s *Summary) Skip() {
	s.Skipped++
}

// Processed returns the number of successfully classified flows.
func (s *Summary) Processed() int64 {
	var n int64
	for _, c := range s.counts {
		n += c
	}
	return n
}

// Count returns the tally for one label.
func (s *Summary) Count(label string) int64 {
	return s.counts[label]
}

// Distribution returns per-label counts in descending count order, ties
// broken alphabetically for stable output.
func (s *Summary) Distribution() []LabelCount {
	dist := make([]LabelCount, 0, len(s.counts))
	for label, count := range s.counts {
		dist = append(dist, LabelCount{Label: label, Count: count})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Label < dist[j].Label
	})
	return dist
}

// Render formats the summary for the invoking console.
func (s *Summary) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, bold.Render("Final label distribution"))
	for _, lc := range s.Distribution() {
		lines = append(lines, fmt.Sprintf("  %-14s %s", cyan.Render(lc.Label), fmt.Sprintf("%d", lc.Count)))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %s %d", dim.Render("classified"), s.Processed()))
	if s.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("  %s %d", yellow.Render("skipped"), s.Skipped))
	} else {
		lines = append(lines, fmt.Sprintf("  %s %d", dim.Render("skipped"), s.Skipped))
	}
	return strings.Join(lines, "\n")
}
