package cmd

import (
	"fmt"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/spf13/cobra"
)

func printMetrics(cmd *cobra.Command, m *client.ProjectMetrics) {
	if m.TotalProjects > 0 {
		cmd.Printf("Projects: %d (%d active, %d completed)\n", m.TotalProjects, m.ActiveProjects, m.CompletedProjects)
	}
	cmd.Printf("Documents: %d of %d processed\n", m.ProcessedDocuments, m.TotalDocuments)
	cmd.Printf("Adjustments: %d of %d reviewed\n", m.ReviewedAdjustments, m.TotalAdjustments)
	if m.AvgCompletionPercentage > 0 || m.AvgAdjustmentReviewPercentage > 0 {
		cmd.Printf("Average completion: %s\n", percent(m.AvgCompletionPercentage))
		cmd.Printf("Average review: %s\n", percent(m.AvgAdjustmentReviewPercentage))
	}
}

func projectMetricsCmd(c *cli) *cobra.Command {
	var recalculate bool

	cmd := &cobra.Command{
		Use:   "metrics <id>",
		Short: "Show the document and adjustment counters of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if recalculate {
				msg, err := a.client.RecalculateProjectMetrics(cmd.Context(), id)
				if err != nil {
					return userError("Failed to recalculate metrics", err)
				}
				if msg != "" {
					cmd.Println(msg)
				}
			}
			m, err := a.client.ProjectMetrics(cmd.Context(), id)
			if err != nil {
				return userError("Failed to fetch project metrics", err)
			}
			printMetrics(cmd, m)
			return nil
		},
	}

	cmd.Flags().BoolVar(&recalculate, "recalculate", false, "Recount progress on the server first")
	return cmd
}

func projectSettingsCmd(c *cli) *cobra.Command {
	var settings client.ProjectSettings

	cmd := &cobra.Command{
		Use:   "settings <id>",
		Short: "Change the materiality rules of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			if err := validation.ValidateNonNegative("materiality threshold", settings.MaterialityThreshold); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateFraction("materiality percentage", settings.MaterialityPercentage); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			out, err := a.client.UpdateProjectSettings(cmd.Context(), id, settings)
			if err != nil {
				return userError("Failed to update project settings", err)
			}
			cmd.Printf("Project %d materiality: %s (%s)\n", id, money(out.MaterialityThreshold), percent(out.MaterialityPercentage*100))
			return nil
		},
	}

	cmd.Flags().Float64Var(&settings.MaterialityThreshold, "threshold", 0, "Materiality threshold amount")
	cmd.Flags().Float64Var(&settings.MaterialityPercentage, "percentage", 0, "Materiality as a fraction of EBITDA [0-1]")
	_ = cmd.MarkFlagRequired("threshold")
	_ = cmd.MarkFlagRequired("percentage")
	return cmd
}

func projectOverviewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show totals across all your projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			m, err := a.client.DashboardOverview(cmd.Context())
			if err != nil {
				return userError("Failed to fetch the dashboard overview", err)
			}
			printMetrics(cmd, m)
			return nil
		},
	}
}

func projectRecentCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently created projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > client.MaxRecentProjects {
				return invalid(fmt.Errorf("limit must be between 1 and %d, got %d", client.MaxRecentProjects, limit))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			projects, err := a.client.RecentProjects(cmd.Context(), limit)
			if err != nil {
				return userError("Failed to list recent projects", err)
			}
			printProjects(cmd, projects)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 5, "Number of projects [1-20]")
	return cmd
}
