package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/spf13/cobra"
)

var reportTypes = []string{client.ReportExcelDatabook, client.ReportWord, client.ReportPDF, client.ReportSummary}

func reportsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Generate and download project reports",
	}
	cmd.AddCommand(reportListCmd(c), reportGenerateCmd(c), reportDownloadCmd(c))
	return cmd
}

func reportListCmd(c *cli) *cobra.Command {
	var projectID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the reports of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			reports, err := a.client.ListReports(cmd.Context(), projectID)
			if err != nil {
				return userError("Failed to list reports", err)
			}
			if len(reports) == 0 {
				cmd.Println("No reports generated yet.")
				return nil
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Title", "Type", "Status", "Size", "Ready", "Created")
			for _, r := range reports {
				size := "-"
				if r.FileSize > 0 {
					size = formatBytes(r.FileSize)
				}
				table.Append([]string{
					strconv.Itoa(r.ID),
					oneLine(r.Title),
					r.ReportType,
					r.Status,
					size,
					yesNo(r.IsReadyForDownload),
					date(r.CreatedAt),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func reportGenerateCmd(c *cli) *cobra.Command {
	var projectID int
	var reportType, title, description string
	var includeRejected, includePending bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Queue generation of a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			if err := validation.ValidateOneOf("report type", reportType, reportTypes...); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			r, err := a.client.GenerateReport(cmd.Context(), client.ReportRequest{
				ProjectID:                  projectID,
				ReportType:                 reportType,
				Title:                      title,
				Description:                description,
				IncludeRejectedAdjustments: includeRejected,
				IncludePendingAdjustments:  includePending,
			})
			if err != nil {
				return userError("Failed to generate report", err)
			}
			cmd.Printf("Report %d queued (status: %s). Use `qoe reports list -p %d` to follow it.\n", r.ID, r.Status, projectID)
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	cmd.Flags().StringVarP(&reportType, "type", "t", client.ReportExcelDatabook, "Report type [excel_databook, word_report, pdf_report, summary_report]")
	cmd.Flags().StringVar(&title, "title", "", "Report title (defaults to the type)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().BoolVar(&includeRejected, "include-rejected", false, "Include rejected adjustments")
	cmd.Flags().BoolVar(&includePending, "include-pending", false, "Include adjustments not reviewed yet")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func reportDownloadCmd(c *cli) *cobra.Command {
	var dir, output string
	var quiet bool
	var checksum string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a generated report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("report", args[0])
			if err != nil {
				return err
			}
			if err := checkAlgo(checksum); err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			path, sum, err := saveDownload(cmd, output, dir, fmt.Sprintf("report-%d", id), quiet, checksum, func(w, progress io.Writer) (string, error) {
				return a.client.DownloadReport(cmd.Context(), id, w, progress)
			})
			if err != nil {
				return userError("Failed to download report", err)
			}
			cmd.Printf("Saved %s\n", path)
			if sum != "" {
				cmd.Printf("%s  %s\n", sum, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to save the file in, under the name given by the server")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Exact output path; overrides --dir")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress bar")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Print a digest of the saved file [md5, sha1, sha256, sha512]")
	return cmd
}
