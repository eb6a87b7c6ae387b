package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mixdeck.click/internal/tracking"
)

// historyFlags are shared by every history subcommand
type historyFlags struct {
	days    int
	preset  string
	since   string
	name    string
	reason  string
	session string
	limit   int
}

func (f *historyFlags) filter(now time.Time) (tracking.QueryFilter, error) {
	filter := tracking.QueryFilter{
		Days:       f.days,
		DatePreset: f.preset,
		Name:       f.name,
		Reason:     f.reason,
		SessionID:  f.session,
		Limit:      f.limit,
	}
	if f.since != "" {
		start, err := tracking.ParseNaturalDate(f.since, now)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &start
		filter.Days = 0
	}
	return filter, nil
}

// newHistoryCommand creates the history command with subcommands
func newHistoryCommand() *cobra.Command {
	var flags historyFlags

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show what has been played",
		Long: `Query the play history database. Every sound and music track that stops is
recorded with the reason it stopped and how long it played.

Examples:
  mixdeck history summary --preset today
  mixdeck history top --days 30 --limit 5
  mixdeck history recent --since "2 hours ago"
  mixdeck history recent --reason faded`,
	}

	pf := historyCmd.PersistentFlags()
	pf.IntVar(&flags.days, "days", 7, "Number of days to include (0 = all time)")
	pf.StringVar(&flags.preset, "preset", "", "Date preset (today, yesterday, week, last-week, month, last-month, all)")
	pf.StringVar(&flags.since, "since", "", "Natural language start time, e.g. \"3 days ago\"")
	pf.StringVar(&flags.name, "name", "", "Only this sound or track name")
	pf.StringVar(&flags.reason, "reason", "", "Only plays that ended this way (finished, halted, faded, expired, freed, replaced)")
	pf.StringVar(&flags.session, "session", "", "Only this session id")
	pf.IntVar(&flags.limit, "limit", 20, "Maximum number of rows")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Totals and how plays ended",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, &flags, outputSummary)
		},
	})
	historyCmd.AddCommand(&cobra.Command{
		Use:   "top",
		Short: "Most played sounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, &flags, outputTopSounds)
		},
	})
	historyCmd.AddCommand(&cobra.Command{
		Use:   "recent",
		Short: "Latest plays, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, &flags, outputRecent)
		},
	})

	return historyCmd
}

type historyOutput func(w io.Writer, cli *CLI, filter tracking.QueryFilter) error

func runHistory(cmd *cobra.Command, flags *historyFlags, output historyOutput) error {
	cli, cfg, err := prepare(cmd)
	if err != nil {
		return err
	}

	filter, err := flags.filter(time.Now())
	if err != nil {
		return err
	}
	slog.Debug("running history query", "command", cmd.Name(), "days", filter.Days, "preset", filter.DatePreset, "name", filter.Name)

	cli.initializeHistory(cfg)
	if cli.historyDB == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Play history is not enabled or the database is not available.")
		fmt.Fprintln(cmd.OutOrStdout(), "Enable it with MIXDECK_HISTORY=true")
		return nil
	}

	return output(cmd.OutOrStdout(), cli, filter)
}

func describeFilter(filter tracking.QueryFilter) string {
	switch {
	case filter.DatePreset != "":
		return filter.DatePreset
	case filter.StartTime != nil:
		return "since " + filter.StartTime.Format(time.DateTime)
	case filter.Days > 0:
		return fmt.Sprintf("last %d days", filter.Days)
	default:
		return "all time"
	}
}

func outputSummary(w io.Writer, cli *CLI, filter tracking.QueryFilter) error {
	summary, err := tracking.GetSummary(cli.historyDB, filter)
	if err != nil {
		return fmt.Errorf("failed to summarize history: %w", err)
	}

	fmt.Fprintf(w, "Play history (%s)\n", describeFilter(filter))
	if summary.TotalPlays == 0 {
		fmt.Fprintln(w, "No plays recorded.")
		return nil
	}
	fmt.Fprintf(w, "  Plays:         %d\n", summary.TotalPlays)
	fmt.Fprintf(w, "  Unique sounds: %d\n", summary.UniqueSounds)
	fmt.Fprintf(w, "  Sessions:      %d\n", summary.Sessions)
	fmt.Fprintf(w, "  Time played:   %s\n", formatMs(summary.TotalPlayedMs))

	reasons := make([]string, 0, len(summary.ByReason))
	for reason := range summary.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if summary.ByReason[reasons[i]] != summary.ByReason[reasons[j]] {
			return summary.ByReason[reasons[i]] > summary.ByReason[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	fmt.Fprintln(w, "  Ended by:")
	for _, reason := range reasons {
		fmt.Fprintf(w, "    %-9s %d\n", reason, summary.ByReason[reason])
	}
	return nil
}

func outputTopSounds(w io.Writer, cli *CLI, filter tracking.QueryFilter) error {
	top, err := tracking.GetTopSounds(cli.historyDB, filter)
	if err != nil {
		return fmt.Errorf("failed to query top sounds: %w", err)
	}

	fmt.Fprintf(w, "Most played (%s)\n", describeFilter(filter))
	if len(top) == 0 {
		fmt.Fprintln(w, "No plays recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPLAYS\tTOTAL\tAVERAGE\tLAST PLAYED")
	for _, s := range top {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			s.Name, s.Plays, formatMs(s.TotalPlayedMs), formatMs(int64(s.AvgPlayedMs)), s.LastPlayed.Format(time.DateTime))
	}
	return tw.Flush()
}

func outputRecent(w io.Writer, cli *CLI, filter tracking.QueryFilter) error {
	plays, err := tracking.GetRecentPlays(cli.historyDB, filter)
	if err != nil {
		return fmt.Errorf("failed to query recent plays: %w", err)
	}

	fmt.Fprintf(w, "Recent plays (%s)\n", describeFilter(filter))
	if len(plays) == 0 {
		fmt.Fprintln(w, "No plays recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tNAME\tCHANNEL\tPLAYED\tENDED")
	for _, p := range plays {
		channel := fmt.Sprint(p.Channel)
		if p.Channel < 0 {
			channel = "music"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Timestamp.Format(time.DateTime), p.Name, channel, formatMs(p.PlayedMs), p.Reason)
	}
	return tw.Flush()
}
