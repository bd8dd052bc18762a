package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jericho/internal/domain"
	"jericho/internal/engine"
	"jericho/internal/suggest"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "suggest", Short: "Weekly suggested blocks"}
	cmd.AddCommand(suggestPlanCmd())
	cmd.AddCommand(suggestRecalibrateCmd())
	cmd.AddCommand(suggestListCmd())
	cmd.AddCommand(suggestTransitionCmd("accept", "Accept a suggestion and schedule it", engine.Engine.AcceptSuggestion))
	cmd.AddCommand(suggestRejectCmd())
	cmd.AddCommand(suggestTransitionCmd("ignore", "Ignore a suggestion", engine.Engine.IgnoreSuggestion))
	cmd.AddCommand(suggestTransitionCmd("dismiss", "Dismiss a suggestion", engine.Engine.DismissSuggestion))
	cmd.AddCommand(suggestHistoryCmd())
	cmd.AddCommand(suggestSignalsCmd())
	return cmd
}

func printPlan(plan engine.SuggestionPlan) error {
	return printJSONOrTable(plan, table.Row{"ID", "Day", "Time", "Minutes", "Domain", "Title", "Status"}, func(tw table.Writer) {
		for _, s := range plan.Suggestions {
			tw.AppendRow(table.Row{s.ID, s.DayKey, s.StartTime, s.DurationMinutes, s.Domain, s.Title, statusColor(s.Status)})
		}
	})
}

func statusColor(s domain.SuggestionStatus) string {
	switch s {
	case domain.SuggestionAccepted:
		return color.GreenString(string(s))
	case domain.SuggestionRejected:
		return color.RedString(string(s))
	case domain.SuggestionSuggested:
		return string(s)
	default:
		return color.HiBlackString(string(s))
	}
}

func suggestPlanCmd() *cobra.Command {
	var goalID, start string
	var days int
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate the first week of suggestions for a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				plan, err := e.PlanSuggestions(ctx, id, days, start)
				if err != nil {
					return err
				}
				return printPlan(plan)
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().IntVar(&days, "days", 3, "days per week (1-7)")
	cmd.Flags().StringVar(&start, "start", "", "first day key (defaults to today)")
	return cmd
}

func suggestRecalibrateCmd() *cobra.Command {
	var goalID string
	var days int
	cmd := &cobra.Command{
		Use:   "recalibrate",
		Short: "Regenerate open suggestions for a new days-per-week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				plan, applied, err := e.Recalibrate(ctx, id, days)
				if err != nil {
					return err
				}
				if !applied && !viper.GetBool("json") {
					fmt.Println(color.YellowString("already at %d days per week; nothing changed", days))
				}
				return printPlan(plan)
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().IntVar(&days, "days", 3, "days per week (1-7)")
	return cmd
}

func suggestListCmd() *cobra.Command {
	var goalID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suggestions with their current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				plan, err := e.ListSuggestions(ctx, id)
				if err != nil {
					return err
				}
				return printPlan(plan)
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	return cmd
}

type transitionFunc func(engine.Engine, context.Context, string) (domain.SuggestedBlock, bool, error)

func suggestTransitionCmd(use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <suggestion-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, applied, err := fn(e, ctx, args[0])
				if err != nil {
					return err
				}
				return printTransition(s, applied)
			})
		},
	}
}

func suggestRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Reject a suggestion with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, applied, err := e.RejectSuggestion(ctx, args[0], strings.ToUpper(reason))
				if err != nil {
					return err
				}
				return printTransition(s, applied)
			})
		},
	}
	reasons := make([]string, 0, len(suggest.RejectionReasons))
	for _, r := range suggest.RejectionReasons {
		reasons = append(reasons, string(r))
	}
	cmd.Flags().StringVar(&reason, "reason", "", "one of "+strings.Join(reasons, ", "))
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func printTransition(s domain.SuggestedBlock, applied bool) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{"suggestion": s, "applied": applied})
	}
	if !applied {
		fmt.Printf("%s already %s\n", s.ID, s.Status)
		return nil
	}
	fmt.Printf("%s %s\n", s.ID, statusColor(s.Status))
	return nil
}

func suggestHistoryCmd() *cobra.Command {
	var opts engine.HistoryOptions
	var types, domains, reasons []string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Suggestion lifecycle over recent days",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range types {
				opts.Filters.Types = append(opts.Filters.Types, suggest.HistoryType(strings.ToUpper(t)))
			}
			for _, d := range domains {
				opts.Filters.Domains = append(opts.Filters.Domains, domain.Domain(strings.ToUpper(d)))
			}
			for _, r := range reasons {
				opts.Filters.Reasons = append(opts.Filters.Reasons, strings.ToUpper(r))
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.SuggestionHistory(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(items, table.Row{"Day", "Type", "Suggestion", "Domain", "Title", "Reason", "At"}, func(tw table.Writer) {
					for _, it := range items {
						title := it.Title
						if it.Archived {
							title = color.HiBlackString("%s (archived)", title)
						}
						tw.AppendRow(table.Row{it.DayKey, it.Type, it.SuggestionID, it.Domain, title, it.Reason, it.AtISO})
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&opts.Days, "days", 7, "window size in days")
	cmd.Flags().StringVar(&opts.DayKey, "day", "", "last day of the window (defaults to today)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "event type filter (created, accepted, rejected, ignored, dismissed)")
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "domain filter")
	cmd.Flags().StringSliceVar(&reasons, "reason", nil, "rejection reason filter")
	return cmd
}

func suggestSignalsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Rejection reasons as correction signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sig, err := e.CorrectionSignals(ctx, days)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sig)
				}
				fmt.Printf("%d rejections in the last %d days\n", sig.TotalRejections, sig.WindowDays)
				r := sig.Ratios
				return printJSONOrTable(sig, table.Row{"Signal", "Ratio"}, func(tw table.Writer) {
					tw.AppendRow(table.Row{"capacity_pressure", fmt.Sprintf("%.2f", r.CapacityPressure)})
					tw.AppendRow(table.Row{"duration_mismatch", fmt.Sprintf("%.2f", r.DurationMismatch)})
					tw.AppendRow(table.Row{"timing_mismatch", fmt.Sprintf("%.2f", r.TimingMismatch)})
					tw.AppendRow(table.Row{"energy_mismatch", fmt.Sprintf("%.2f", r.EnergyMismatch)})
					tw.AppendRow(table.Row{"relevance_mismatch", fmt.Sprintf("%.2f", r.RelevanceMismatch)})
					tw.AppendRow(table.Row{"prereq_debt", fmt.Sprintf("%.2f", r.PrereqDebt)})
				})
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}

func resolveGoal(ctx context.Context, e engine.Engine, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	g, err := e.ActiveGoal(ctx)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}
