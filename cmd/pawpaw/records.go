package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/stats"
	"github.com/spf13/cobra"
)

func newRecordCommand(rt *cliRuntime) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "record <category>",
		Short: "Record an activity starting now",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			category, err := activities.ParseCategory(args[0])
			if err != nil {
				return err
			}
			record, err := a.store.Add(cmd.Context(), category, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Recorded %s\n", formatRecordLine(record, a.config.Location))
			return nil
		}),
	}
	cmd.Flags().StringVar(&note, "note", "", "Optional note")
	return cmd
}

func newAddCommand(rt *cliRuntime) *cobra.Command {
	var (
		startInput string
		endInput   string
		note       string
	)
	cmd := &cobra.Command{
		Use:   "add <category>",
		Short: "Add an activity with explicit start and end times",
		Long:  "Add an activity with explicit times. A missing start is filled with the category's suggested duration before the end; a future end is pulled back to now.",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			category, err := activities.ParseCategory(args[0])
			if err != nil {
				return err
			}
			start, end, err := resolveSpan(category, startInput, endInput, a.now(), a.config.Location)
			if err != nil {
				return err
			}
			record, err := a.store.AddAt(cmd.Context(), category, start, end, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s\n", formatRecordLine(record, a.config.Location))
			return nil
		}),
	}
	cmd.Flags().StringVar(&startInput, "start", "", "Start time (RFC3339, \"2006-01-02 15:04\" or \"15:04\")")
	cmd.Flags().StringVar(&endInput, "end", "", "End time (defaults to now)")
	cmd.Flags().StringVar(&note, "note", "", "Optional note")
	return cmd
}

// resolveSpan fills the times the user left out.
func resolveSpan(category activities.Category, startInput, endInput string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	var (
		start, end time.Time
		err        error
	)
	if startInput != "" {
		if start, err = parseMoment(startInput, now, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
		}
	}
	if endInput != "" {
		if end, err = parseMoment(endInput, now, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
		}
	}

	switch {
	case !start.IsZero() && !end.IsZero():
		return start, activities.ClampEnd(end, now), nil
	case !start.IsZero():
		return start, start.Add(activities.DefaultDuration), nil
	case !end.IsZero():
		start, end = activities.SpanEndingAt(activities.ClampEnd(end, now), activities.SuggestedDuration(category))
		return start, end, nil
	default:
		start, end = activities.SpanEndingAt(now, activities.SuggestedDuration(category))
		return start, end, nil
	}
}

func newEditCommand(rt *cliRuntime) *cobra.Command {
	var (
		categoryInput string
		startInput    string
		endInput      string
		note          string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing activity",
		Args:  cobra.ExactArgs(1),
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var changes activities.RecordChanges
			flags := cmd.Flags()
			if flags.Changed("category") {
				category, err := activities.ParseCategory(categoryInput)
				if err != nil {
					return err
				}
				changes.Category = &category
			}
			if flags.Changed("start") {
				start, err := parseMoment(startInput, a.now(), a.config.Location)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				changes.StartTime = &start
			}
			if flags.Changed("end") {
				end, err := parseMoment(endInput, a.now(), a.config.Location)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				changes.EndTime = &end
			}
			if flags.Changed("note") {
				changes.Note = &note
			}

			record, err := a.store.Update(cmd.Context(), args[0], changes)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s\n", formatRecordLine(record, a.config.Location))
			return nil
		}),
	}
	cmd.Flags().StringVar(&categoryInput, "category", "", "New category")
	cmd.Flags().StringVar(&startInput, "start", "", "New start time")
	cmd.Flags().StringVar(&endInput, "end", "", "New end time")
	cmd.Flags().StringVar(&note, "note", "", "New note (empty clears it)")
	return cmd
}

func newRemoveCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete one activity",
		Args:    cobra.ExactArgs(1),
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				if isNotFound(err) {
					return fmt.Errorf("no activity with id %q", args[0])
				}
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newClearCommand(rt *cliRuntime) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every activity",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			count := a.store.Count()
			if count == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("Nothing to clear."))
				return nil
			}
			if !assumeYes {
				confirmed, err := a.confirm("Clear all data?",
					fmt.Sprintf("This permanently deletes %d activities.", count))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(a.out, "Nothing deleted.")
					return nil
				}
			}
			if err := a.store.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %d activities.\n", count)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newListCommand(rt *cliRuntime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"timeline"},
		Short:   "Show activities grouped by day, newest first",
		Args:    cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			records := a.store.List()
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("No activities yet."))
				return nil
			}
			now := a.now().In(a.config.Location)
			for _, day := range stats.Timeline(records, a.config.Location) {
				fmt.Fprintln(a.out, headerStyle.Render(formatDay(day.Date, now)))
				for _, record := range day.Records {
					fmt.Fprintln(a.out, formatRecordLine(record, a.config.Location))
				}
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many activities (0 for all)")
	return cmd
}

func newLastCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Show the most recent activity",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			record, ok := stats.Latest(a.store.List())
			if !ok {
				fmt.Fprintln(a.out, dimStyle.Render("No activities yet."))
				return nil
			}
			ago := a.now().Sub(record.StartTime).Truncate(time.Minute)
			fmt.Fprintln(a.out, formatRecordLine(record, a.config.Location))
			fmt.Fprintln(a.out, dimStyle.Render(fmt.Sprintf("%s ago", formatDuration(ago))))
			return nil
		}),
	}
}

// isNotFound reports whether err means the id was unknown.
func isNotFound(err error) bool {
	return errors.Is(err, activities.ErrRecordNotFound)
}
