package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jericho/internal/engine"
	"jericho/internal/metrics"
	"jericho/internal/nextmove"
)

func goalCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "goal", Short: "Manage goals"}
	cmd.AddCommand(goalSetCmd())
	cmd.AddCommand(goalUseCmd())
	cmd.AddCommand(goalShowCmd())
	return cmd
}

func goalSetCmd() *cobra.Command {
	var opts engine.GoalOptions
	cmd := &cobra.Command{
		Use:   "set <text>",
		Short: "Create or update a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Text = strings.Join(args, " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.SetGoal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(g)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "goal id (derived from text when empty)")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline date or instant")
	cmd.Flags().BoolVar(&opts.Activate, "activate", false, "make it the active goal")
	return cmd
}

func goalUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <goal-id>",
		Short: "Set the active goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.ActivateGoal(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("active goal: %s (%s)\n", g.ID, g.Text)
				return nil
			})
		},
	}
}

func goalShowCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active goal and its profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.ActiveGoal(ctx)
				if err != nil {
					return err
				}
				if day == "" {
					day = e.Today()
				}
				p, err := e.Profile(g, day)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"goal": g, "profile": p})
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day key used for deadline pressure")
	return cmd
}

func blockCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "block", Short: "Manage time blocks"}
	cmd.AddCommand(blockAddCmd())
	cmd.AddCommand(blockCompleteCmd())
	cmd.AddCommand(blockReclassifyCmd())
	cmd.AddCommand(blockListCmd())
	return cmd
}

func blockAddCmd() *cobra.Command {
	var opts engine.BlockOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a block",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Start == "" || opts.End == "" {
				return fmt.Errorf("--start and --end required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.AddBlock(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "block id")
	cmd.Flags().StringVar(&opts.GoalID, "goal", "", "goal id")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start instant")
	cmd.Flags().StringVar(&opts.End, "end", "", "end instant")
	cmd.Flags().StringVar(&opts.Practice, "practice", "", "practice: Body, Resources, Creation or Focus")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label")
	cmd.Flags().StringVar(&opts.Status, "status", "", "pending, completed or skipped")
	return cmd
}

func blockCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <block-id>",
		Short: "Mark a block completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.CompleteBlock(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
}

func blockReclassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify <block-id> <practice>",
		Short: "Change the practice of a block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.ReclassifyBlock(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
}

func blockListCmd() *cobra.Command {
	var q engine.BlockQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				blocks, err := e.ListBlocks(ctx, q)
				if err != nil {
					return err
				}
				return printJSONOrTable(blocks, table.Row{"ID", "Day", "Start", "Minutes", "Practice", "Status", "Label"}, func(tw table.Writer) {
					for _, b := range blocks {
						tw.AppendRow(table.Row{b.ID, b.DayKey, b.Start, b.DurationMinutes, b.PracticeKey, b.Status, b.Label})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&q.GoalID, "goal", "", "goal filter")
	cmd.Flags().StringVar(&q.DayKey, "day", "", "day key filter")
	return cmd
}

func nextCmd() *cobra.Command {
	var goalID, day string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next move for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.NextMove(ctx, goalID, day)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				printDirective(res.Directive)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().StringVar(&day, "day", "", "day key (defaults to today)")
	return cmd
}

func printDirective(d nextmove.Directive) {
	bold := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	if d.Kind == nextmove.KindNone {
		fmt.Printf("%s %s\n", color.YellowString("Nothing to do"), gray(d.DayKey))
		for _, r := range d.Rationale {
			fmt.Printf("  - %s\n", r)
		}
		return
	}
	fmt.Printf("%s %s\n", bold(d.Title), gray(fmt.Sprintf("(%s, %d min, %s)", d.Domain, d.DurationMinutes, d.Kind)))
	if d.StartISO != "" {
		fmt.Printf("  at %s\n", d.StartISO)
	}
	if d.Why != "" {
		fmt.Printf("  why: %s\n", d.Why)
	}
	for _, r := range d.Rationale {
		fmt.Printf("  - %s\n", r)
	}
	fmt.Printf("  %s %s\n", color.GreenString("done when:"), d.DoneWhen)
}

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "metrics", Short: "Completion, instrumentation and drift"}
	cmd.AddCommand(metricsWindowCmd())
	cmd.AddCommand(metricsTodayCmd())
	cmd.AddCommand(metricsDriftCmd())
	return cmd
}

func windowFlags(cmd *cobra.Command, opts *engine.WindowOptions) {
	cmd.Flags().StringVar(&opts.Mode, "mode", "week", "day, week or month")
	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "anchor day key (defaults to today)")
	cmd.Flags().BoolVar(&opts.Padded, "padded", false, "extend to whole weeks")
	cmd.Flags().BoolVar(&opts.Targets, "targets", false, "project planned minutes from pattern targets")
}

func metricsWindowCmd() *cobra.Command {
	var opts engine.WindowOptions
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Completion rate over a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.WindowMetrics(ctx, opts)
				if err != nil {
					return err
				}
				if !opts.PerDay {
					return printJSONOrTable(rep, table.Row{"Start", "End (excl)", "Planned", "Completed", "CR"}, func(tw table.Writer) {
						m := rep.Metrics
						tw.AppendRow(table.Row{rep.Span.Start, rep.Span.EndExclusive, m.PlannedMinutes, m.CompletedMinutes, fmt.Sprintf("%.2f", m.CR)})
					})
				}
				return printJSONOrTable(rep, table.Row{"Day", "Planned", "Completed", "CR"}, func(tw table.Writer) {
					for _, day := range rep.Metrics.DayKeys {
						m := rep.Days[day]
						tw.AppendRow(table.Row{day, m.PlannedMinutes, m.CompletedMinutes, fmt.Sprintf("%.2f", m.CR)})
					}
				})
			})
		},
	}
	windowFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.PerDay, "per-day", false, "break down by day")
	return cmd
}

func metricsTodayCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Per-practice target, scheduled and completed minutes for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.TodayInstrumentation(ctx, day)
				if err != nil {
					return err
				}
				return printJSONOrTable(rows, table.Row{"Practice", "Domain", "Target", "Scheduled", "Completed", "Gap"}, func(tw table.Writer) {
					for _, r := range rows {
						tw.AppendRow(table.Row{r.Practice, r.Domain, r.Target, r.Scheduled, r.Completed, r.Gap})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day key (defaults to today)")
	return cmd
}

func metricsDriftCmd() *cobra.Command {
	var opts engine.WindowOptions
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Distance of the planned practice mix from the target mix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.Drift(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("drift %.2f (%s) over %s..%s\n", rep.Drift.Score, bandColor(rep.Drift.Band), rep.Span.Start, rep.Span.EndExclusive)
				return printJSONOrTable(rep, table.Row{"Practice", "Gap (min)"}, func(tw table.Writer) {
					for _, d := range rep.Drift.Deficits {
						tw.AppendRow(table.Row{d.Practice, d.GapMinutes})
					}
				})
			})
		},
	}
	windowFlags(cmd, &opts)
	return cmd
}

func bandColor(b metrics.Band) string {
	switch b {
	case metrics.BandStrong:
		return color.GreenString(string(b))
	case metrics.BandModerate:
		return color.YellowString(string(b))
	default:
		return color.RedString(string(b))
	}
}
