package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"jericho/internal/domain"
	"jericho/internal/engine"
)

func weightsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "weights", Short: "Capability requirements and weights"}
	cmd.AddCommand(weightsSetCmd())
	cmd.AddCommand(weightsRecordCmd())
	cmd.AddCommand(weightsAdjustCmd())
	return cmd
}

func printRequirements(reqs []domain.CapabilityRequirement) error {
	return printJSONOrTable(reqs, table.Row{"Domain", "Capability", "Target", "Current", "Weight"}, func(tw table.Writer) {
		for _, r := range reqs {
			tw.AppendRow(table.Row{r.Domain, r.Capability, r.TargetLevel, r.CurrentLevel, fmt.Sprintf("%.3f", r.Weight)})
		}
	})
}

func weightsSetCmd() *cobra.Command {
	var goalID, file string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace a goal's capability requirements from a YAML list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var reqs []domain.CapabilityRequirement
			if err := yaml.Unmarshal(data, &reqs); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				stored, err := e.SetRequirements(ctx, id, reqs)
				if err != nil {
					return err
				}
				return printRequirements(stored)
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().StringVar(&file, "file", "", "YAML list of {domain, capability, target_level, current_level, weight}")
	return cmd
}

// parseChange reads domain:capability=delta, e.g. Creation:mixing=+0.2.
func parseChange(s string) (domain.CapabilityChange, error) {
	key, val, ok := strings.Cut(s, "=")
	if !ok {
		return domain.CapabilityChange{}, fmt.Errorf("change %q: want domain:capability=delta", s)
	}
	dom, capability, ok := strings.Cut(key, ":")
	if !ok || dom == "" || capability == "" {
		return domain.CapabilityChange{}, fmt.Errorf("change %q: want domain:capability=delta", s)
	}
	delta, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return domain.CapabilityChange{}, fmt.Errorf("change %q: %w", s, err)
	}
	return domain.CapabilityChange{Domain: dom, Capability: capability, Delta: delta}, nil
}

func weightsRecordCmd() *cobra.Command {
	var goalID string
	var integrity float64
	var raw []string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a capability cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := make([]domain.CapabilityChange, 0, len(raw))
			for _, s := range raw {
				c, err := parseChange(s)
				if err != nil {
					return err
				}
				changes = append(changes, c)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				cycle, err := e.RecordCycle(ctx, id, integrity, changes)
				if err != nil {
					return err
				}
				return printJSON(cycle)
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().Float64Var(&integrity, "integrity", 0, "integrity score 0-100")
	cmd.Flags().StringArrayVar(&raw, "change", nil, "domain:capability=delta (repeatable)")
	return cmd
}

func weightsAdjustCmd() *cobra.Command {
	var goalID, userID string
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Rescale weights from the last cycle and store an identity snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := resolveGoal(ctx, e, goalID)
				if err != nil {
					return err
				}
				adj, err := e.AdjustWeights(ctx, id, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(adj)
				}
				before := map[string]float64{}
				for _, r := range adj.Before {
					before[r.Domain+":"+r.Capability] = r.Weight
				}
				return printJSONOrTable(adj, table.Row{"Domain", "Capability", "Before", "After"}, func(tw table.Writer) {
					for _, r := range adj.After {
						was := before[r.Domain+":"+r.Capability]
						now := fmt.Sprintf("%.3f", r.Weight)
						switch {
						case r.Weight > was:
							now = color.GreenString(now)
						case r.Weight < was:
							now = color.RedString(now)
						}
						tw.AppendRow(table.Row{r.Domain, r.Capability, fmt.Sprintf("%.3f", was), now})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&goalID, "goal", "", "goal id (defaults to the active goal)")
	cmd.Flags().StringVar(&userID, "user", "", "user id for the snapshot")
	return cmd
}

func snapshotsCmd() *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Recent identity snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snaps, err := e.IdentitySnapshots(ctx, userID, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(snaps, table.Row{"ID", "Goal", "Integrity", "Load", "Created"}, func(tw table.Writer) {
					for _, s := range snaps {
						tw.AppendRow(table.Row{s.ID, s.GoalID, s.Integrity.Score, fmt.Sprintf("%.2f", s.LoadIndex), s.CreatedAt})
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of snapshots")
	return cmd
}

func artifactsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "artifacts", Short: "Planner artifacts"}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import feasibility, eligibility and probability artifacts from YAML or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.ImportArtifactsFile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(sum)
			})
		},
	})
	return cmd
}

func truthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "truth",
		Short: "Show the truth panel for the active goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				panel, err := e.TruthPanel(ctx)
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					for _, pe := range panel.Errors {
						fmt.Fprintln(os.Stderr, color.YellowString("%s %s", pe.Code, strings.Join(pe.Fields, ", ")))
					}
				}
				return printJSON(panel)
			})
		},
	}
}
