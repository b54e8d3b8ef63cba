package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/db"
	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/qoeplatform/qoe/pkg/pool"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var projectStatuses = []string{client.ProjectActive, client.ProjectCompleted, client.ProjectArchived, client.ProjectOnHold}

func projectsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage due diligence projects",
	}

	cmd.AddCommand(
		projectListCmd(c),
		projectSearchCmd(c),
		projectShowCmd(c),
		projectCreateCmd(c),
		projectUpdateCmd(c),
		projectDeleteCmd(c),
		projectSyncCmd(c),
		projectFilterCmd(c),
		projectExportCmd(c),
		projectMetricsCmd(c),
		projectSettingsCmd(c),
		projectOverviewCmd(c),
		projectRecentCmd(c),
	)
	return cmd
}

// parseID reads a positional resource ID.
func parseID(kind, arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, invalid(fmt.Errorf("%s ID must be a positive integer, got %q", kind, arg))
	}
	if err := validation.ValidateID(kind, id); err != nil {
		return 0, invalid(err)
	}
	return id, nil
}

// checkID validates an ID given as a flag.
func checkID(kind string, id int) error {
	return invalid(validation.ValidateID(kind, id))
}

func projectListCmd(c *cli) *cobra.Command {
	var page, limit int
	var all, cached bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return invalid(fmt.Errorf("page must be at least 1, got %d", page))
			}
			if limit < 1 || limit > client.DefaultPageSize {
				return invalid(fmt.Errorf("limit must be between 1 and %d, got %d", client.DefaultPageSize, limit))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if cached {
				return printCachedProjects(cmd, a, db.ProjectFilter{})
			}

			var projects []client.Project
			footer := ""
			if all {
				projects, err = a.client.AllProjects(cmd.Context())
			} else {
				var list *client.ProjectList
				list, err = a.client.ListProjects(cmd.Context(), (page-1)*limit, limit)
				if list != nil {
					projects = list.Projects
					footer = fmt.Sprintf("Page %d of %d, %d projects in total.", list.Page, list.Pages, list.Total)
				}
			}
			if err != nil {
				return userError("Failed to list projects", err)
			}
			printProjects(cmd, projects)
			if footer != "" && len(projects) > 0 {
				cmd.Println(footer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page to show")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Projects per page [1-100]")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every page")
	cmd.Flags().BoolVar(&cached, "cached", false, "List the local cache instead of asking the server (see `projects sync`)")
	return cmd
}

func printProjects(cmd *cobra.Command, projects []client.Project) {
	if len(projects) == 0 {
		cmd.Println("No projects found.")
		return
	}
	table := newTable(cmd.OutOrStdout(), "ID", "Name", "Client", "Status", "Progress", "Ready")
	table.SetColMinWidth(1, 30)
	for _, p := range projects {
		table.Append([]string{
			strconv.Itoa(p.ID),
			oneLine(p.Name),
			oneLine(p.ClientName),
			p.Status,
			percent(p.CompletionPercentage),
			yesNo(p.IsReadyForExport),
		})
	}
	table.Render()
}

func printCachedProjects(cmd *cobra.Command, a *app, f db.ProjectFilter) error {
	projects, err := a.projects.Filter(cmd.Context(), f)
	if err != nil {
		return userError("Failed to read the project cache", err)
	}
	if len(projects) == 0 {
		cmd.Println("No cached projects found. Use `qoe projects sync` to update the cache.")
		return nil
	}
	table := newTable(cmd.OutOrStdout(), "ID", "Name", "Client", "Status", "Progress", "Reviewed", "Ready", "Synced")
	table.SetColMinWidth(1, 30)
	for _, p := range projects {
		table.Append([]string{
			strconv.Itoa(p.ID),
			oneLine(p.Name),
			oneLine(p.ClientName),
			p.Status,
			percent(p.CompletionPercentage),
			percent(p.ReviewPercentage),
			yesNo(p.ReadyForExport),
			date(p.SyncedAt),
		})
	}
	table.Render()
	log.Info().Msgf("Listed %d cached projects.", len(projects))
	return nil
}

func projectSearchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search projects by name or client on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateNonEmptyString("search term", args[0]); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			projects, err := a.client.SearchProjects(cmd.Context(), args[0])
			if err != nil {
				return userError("Failed to search projects", err)
			}
			printProjects(cmd, projects)
			return nil
		},
	}
}

func projectShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project and its progress",
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
			p, err := a.client.GetProject(cmd.Context(), id)
			if err != nil {
				return userError("Failed to fetch project", err)
			}
			d, err := a.client.ProjectDashboard(cmd.Context(), id)
			if err != nil {
				log.Warn().Err(err).Int("project", id).Msg("Dashboard unavailable, showing project fields only")
			}

			cmd.Println("Project Information:")
			cmd.Printf("ID: %d\n", p.ID)
			cmd.Printf("Name: %s\n", p.Name)
			cmd.Printf("Client: %s\n", p.ClientName)
			if p.Description != "" {
				cmd.Printf("Description: %s\n", oneLine(p.Description))
			}
			cmd.Printf("Status: %s\n", p.Status)
			cmd.Printf("Materiality: %s (%s)\n", money(p.MaterialityThreshold), percent(p.MaterialityPercentage*100))
			cmd.Printf("Created: %s\n", date(p.CreatedAt))
			if d != nil {
				cmd.Printf("Documents: %d of %d processed\n", d.ProcessedDocuments, d.TotalDocuments)
				cmd.Printf("Adjustments: %d of %d reviewed (%s)\n", d.ReviewedAdjustments, d.TotalAdjustments, percent(d.AdjustmentReviewPercentage))
				cmd.Printf("Completion: %s\n", percent(d.CompletionPercentage))
				cmd.Printf("QA completed: %s\n", yesNo(d.QACompleted))
				cmd.Printf("Ready for export: %s\n", yesNo(d.IsReadyForExport))
			}
			return nil
		},
	}
}

func projectCreateCmd(c *cli) *cobra.Command {
	var name, clientName, description string
	var threshold, percentage float64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateNonEmptyString("name", name); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateNonEmptyString("client", clientName); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateNonNegative("materiality threshold", threshold); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateFraction("materiality percentage", percentage); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			in := client.ProjectInput{
				Name:                  &name,
				ClientName:            &clientName,
				MaterialityThreshold:  &threshold,
				MaterialityPercentage: &percentage,
			}
			if description != "" {
				in.Description = &description
			}
			p, err := a.client.CreateProject(cmd.Context(), in)
			if err != nil {
				return userError("Failed to create project", err)
			}
			cmd.Printf("Project %d created.\n", p.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name")
	cmd.Flags().StringVarP(&clientName, "client", "c", "", "Client company name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().Float64Var(&threshold, "materiality-threshold", 0, "Materiality threshold amount")
	cmd.Flags().Float64Var(&percentage, "materiality-percentage", 0.05, "Materiality as a fraction of EBITDA [0-1]")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func projectUpdateCmd(c *cli) *cobra.Command {
	var name, clientName, description, status, qaNotes string
	var qaCompleted bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var in client.ProjectInput
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("client") {
				in.ClientName = &clientName
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("status") {
				if err := validation.ValidateOneOf("status", status, projectStatuses...); err != nil {
					return invalid(err)
				}
				in.Status = &status
			}
			if flags.Changed("qa-completed") {
				in.QACompleted = &qaCompleted
			}
			if flags.Changed("qa-notes") {
				in.QANotes = &qaNotes
			}
			if in == (client.ProjectInput{}) {
				return invalid(errors.New("nothing to update, pass at least one field flag"))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			p, err := a.client.UpdateProject(cmd.Context(), id, in)
			if err != nil {
				return userError("Failed to update project", err)
			}
			cmd.Printf("Project %d updated (status: %s).\n", p.ID, p.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name")
	cmd.Flags().StringVarP(&clientName, "client", "c", "", "Client company name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Status [active, completed, archived, on_hold]")
	cmd.Flags().BoolVar(&qaCompleted, "qa-completed", false, "Mark quality assurance as completed")
	cmd.Flags().StringVar(&qaNotes, "qa-notes", "", "Quality assurance notes")
	return cmd
}

func projectDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
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
			if err := a.client.DeleteProject(cmd.Context(), id); err != nil {
				return userError("Failed to delete project", err)
			}
			if err := a.projects.Delete(cmd.Context(), id); err != nil {
				log.Warn().Err(err).Int("project", id).Msg("Failed to drop project from the cache")
			}
			cmd.Printf("Project %d deleted.\n", id)
			return nil
		},
	}
}

// projectSyncCmd refreshes the local project cache with the latest data from the server.
func projectSyncCmd(c *cli) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Update the local project cache from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Sync.Workers
			}
			if err := validation.ValidateWorkerCount(workers); err != nil {
				return invalid(err)
			}
			n, failed, err := syncProjects(cmd, a, workers)
			if err != nil {
				return err
			}
			cmd.Printf("Sync completed. There are %d projects in the cache.\n", n)
			if failed > 0 {
				cmd.PrintErrf("Warning: progress details of %d projects could not be fetched.\n", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of concurrent requests [1-20]")
	return cmd
}

// syncProjects replaces the cache with every project on the server. Dashboards are
// fetched concurrently; a project whose dashboard fails is cached from the list data.
func syncProjects(cmd *cobra.Command, a *app, workers int) (int, int, error) {
	ctx := cmd.Context()
	log.Info().Msg("Refreshing the project cache...")

	projects, err := a.client.AllProjects(ctx)
	if err != nil {
		return 0, 0, userError("Failed to fetch projects", err)
	}

	bar := progressbar.NewOptions(len(projects),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Syncing projects..."),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	dashboards, errs := pool.Map(ctx, projects, workers, func(ctx context.Context, p client.Project) (*client.ProjectDashboard, error) {
		defer func() { _ = bar.Add(1) }()
		return a.client.ProjectDashboard(ctx, p.ID)
	})
	_ = bar.Finish()

	// A session that ended mid-sync leaves the cache as it was.
	for _, err := range errs {
		if errors.Is(err, client.ErrSessionEnded) || errors.Is(err, context.Canceled) {
			return 0, 0, userError("Failed to sync projects", err)
		}
	}

	for _, err := range errs {
		log.Warn().Err(err).Msg("Failed to fetch project dashboard")
	}
	now := time.Now()
	failed := 0
	rows := make([]db.Project, len(projects))
	for i, p := range projects {
		if dashboards[i] == nil {
			failed++
		}
		rows[i] = cachedProject(p, dashboards[i], now)
	}
	if err := a.projects.ReplaceAll(ctx, rows); err != nil {
		return 0, 0, userError("Failed to write the project cache", err)
	}
	log.Info().Int("projects", len(projects)).Int("failed", failed).Msg("Project cache refreshed")
	return len(projects), failed, nil
}

func cachedProject(p client.Project, d *client.ProjectDashboard, syncedAt time.Time) db.Project {
	row := db.Project{
		ID:                   p.ID,
		Name:                 p.Name,
		ClientName:           p.ClientName,
		Status:               p.Status,
		CompletionPercentage: p.CompletionPercentage,
		ReviewPercentage:     p.AdjustmentReviewPercentage,
		TotalDocuments:       p.TotalDocuments,
		TotalAdjustments:     p.TotalAdjustments,
		ReadyForExport:       p.IsReadyForExport,
		SyncedAt:             syncedAt,
	}
	if d != nil {
		row.Status = d.Status
		row.CompletionPercentage = d.CompletionPercentage
		row.ReviewPercentage = d.AdjustmentReviewPercentage
		row.TotalDocuments = d.TotalDocuments
		row.TotalAdjustments = d.TotalAdjustments
		row.ReadyForExport = d.IsReadyForExport
	}
	if raw, err := json.Marshal(p); err == nil {
		row.Data = string(raw)
	}
	return row
}

// projectFilterCmd filters the local cache by name or client, status and readiness.
func projectFilterCmd(c *cli) *cobra.Command {
	var query, status string
	var ready bool

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter the cached projects",
		Long:  "Filter the local project cache. The search is case-insensitive and matches part of the name or client.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := db.ProjectFilter{Query: query, Status: status}
			if status != "" {
				if err := validation.ValidateOneOf("status", status, projectStatuses...); err != nil {
					return invalid(err)
				}
			}
			if cmd.Flags().Changed("ready") {
				f.Ready = &ready
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			return printCachedProjects(cmd, a, f)
		},
	}

	cmd.Flags().StringVarP(&query, "term", "t", "", "Part of the project or client name")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Status [active, completed, archived, on_hold]")
	cmd.Flags().BoolVar(&ready, "ready", false, "Only projects that are (or with =false are not) ready for export")
	return cmd
}

// projectExportCmd writes the project cache, or with --fresh the server's
// current project list, to a JSON or CSV file.
func projectExportCmd(c *cli) *cobra.Command {
	var dir, format string
	var fresh bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the cached (or, with --fresh, the server's) projects to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateOneOf("export format", format, "json", "csv"); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			projects, err := exportedProjects(cmd, a, fresh)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return clierr.New(clierr.Internal, "Failed to create export directory: "+err.Error(), err)
			}
			path := filepath.Join(dir, fmt.Sprintf("qoe_projects_%s.%s", time.Now().Format("20060102_150405"), format))
			if format == "json" {
				err = exportProjectsToJSON(path, projects)
			} else {
				err = exportProjectsToCSV(path, projects)
			}
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to export projects: "+err.Error(), err)
			}
			cmd.Printf("Exported %d projects to %s\n", len(projects), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write the file to")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: json or csv")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Fetch the projects from the server instead of reading the cache")
	return cmd
}

// exportedProjects reads the cache, or lists the server without touching the cache.
func exportedProjects(cmd *cobra.Command, a *app, fresh bool) ([]db.Project, error) {
	if !fresh {
		projects, err := a.projects.List(cmd.Context())
		if err != nil {
			return nil, userError("Failed to read the project cache", err)
		}
		return projects, nil
	}
	listed, err := a.client.AllProjects(cmd.Context())
	if err != nil {
		return nil, userError("Failed to fetch projects", err)
	}
	now := time.Now()
	projects := make([]db.Project, len(listed))
	for i, p := range listed {
		projects[i] = cachedProject(p, nil, now)
	}
	return projects, nil
}

func exportProjectsToCSV(path string, projects []db.Project) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	_ = w.Write([]string{"ID", "Name", "Client", "Status", "Completion", "Reviewed", "Documents", "Adjustments", "Ready", "SyncedAt"})
	for _, p := range projects {
		_ = w.Write([]string{
			strconv.Itoa(p.ID),
			p.Name,
			p.ClientName,
			p.Status,
			strconv.FormatFloat(p.CompletionPercentage, 'f', 1, 64),
			strconv.FormatFloat(p.ReviewPercentage, 'f', 1, 64),
			strconv.Itoa(p.TotalDocuments),
			strconv.Itoa(p.TotalAdjustments),
			strconv.FormatBool(p.ReadyForExport),
			p.SyncedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func exportProjectsToJSON(path string, projects []db.Project) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(projects); err != nil {
		return err
	}
	return file.Close()
}
