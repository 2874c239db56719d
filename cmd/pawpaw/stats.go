package main

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/stats"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newStatsCommand(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summaries of recorded activities",
	}
	cmd.AddCommand(newHourlyCommand(rt), newTotalsCommand(rt))
	return cmd
}

func newHourlyCommand(rt *cliRuntime) *cobra.Command {
	var categoryInput string
	cmd := &cobra.Command{
		Use:   "hourly",
		Short: "Show which hours of the day a category usually happens",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			category, err := activities.ParseCategory(categoryInput)
			if err != nil {
				return err
			}
			counts := stats.HourlyHistogram(a.store.List(), category, a.config.Location)
			fmt.Fprintln(a.out, headerStyle.Render(styleFor(category).label+" by hour"))
			fmt.Fprint(a.out, renderHistogram(counts, styleFor(category).color))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&categoryInput, "category", "c", string(activities.CategoryPee), "Category to chart")
	return cmd
}

// renderHistogram draws the 24 hourly cells in two rows of twelve.
func renderHistogram(counts [stats.HoursPerDay]int, color lipgloss.Color) string {
	peak := 0
	for _, count := range counts {
		peak = max(peak, count)
	}
	cell := lipgloss.NewStyle().Foreground(color)

	var b strings.Builder
	for row := 0; row < 2; row++ {
		var labels, cells, values []string
		for hour := row * 12; hour < (row+1)*12; hour++ {
			labels = append(labels, fmt.Sprintf("%3s", fmt.Sprintf("%02d", hour)))
			cells = append(cells, "  "+cell.Render(shadeGlyph(shade(counts[hour], peak))))
			values = append(values, fmt.Sprintf("%3d", counts[hour]))
		}
		b.WriteString(dimStyle.Render(strings.Join(labels, " ")) + "\n")
		b.WriteString(strings.Join(cells, " ") + "\n")
		b.WriteString(strings.Join(values, " ") + "\n")
	}
	return b.String()
}

func newTotalsCommand(rt *cliRuntime) *cobra.Command {
	var rangeInput string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Count activities per category over a range",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			window, err := stats.ParseRange(rangeInput)
			if err != nil {
				return err
			}
			totals, err := stats.CategoryTotals(a.store.List(), window, a.now().In(a.config.Location))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, headerStyle.Render(window.Label()))
			for _, total := range stats.OrderedTotals(totals) {
				style := styleFor(total.Category)
				fmt.Fprintf(a.out, "%s %-6s %d\n", style.icon, style.label, total.Count)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&rangeInput, "range", "r", string(stats.DefaultRange), rangeHelp())
	return cmd
}

func rangeHelp() string {
	names := make([]string, 0, len(stats.Ranges()))
	for _, r := range stats.Ranges() {
		names = append(names, string(r))
	}
	return "Range (" + strings.Join(names, ", ") + ")"
}
