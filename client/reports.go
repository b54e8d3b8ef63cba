package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ValidReportType reports whether t is a report type the backend can generate.
func ValidReportType(t string) bool {
	switch t {
	case ReportExcelDatabook, ReportWord, ReportPDF, ReportSummary:
		return true
	}
	return false
}

// ListReports lists the reports of a project.
func (c *Client) ListReports(ctx context.Context, projectID int) ([]Report, error) {
	q := url.Values{}
	if projectID > 0 {
		q.Set("project_id", strconv.Itoa(projectID))
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/reports/", Query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[Report](resp.Body, "reports")
}

// GenerateReport queues generation of a report. Generation itself happens on the server.
func (c *Client) GenerateReport(ctx context.Context, in ReportRequest) (*Report, error) {
	if !ValidReportType(in.ReportType) {
		return nil, fmt.Errorf("unknown report type %q", in.ReportType)
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = strings.ReplaceAll(in.ReportType, "_", " ")
	}
	var r Report
	if err := c.sendJSON(ctx, http.MethodPost, "/reports/generate", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DownloadReport streams a generated report file into w.
func (c *Client) DownloadReport(ctx context.Context, id int, w io.Writer, progress io.Writer) (string, error) {
	return c.download(ctx, fmt.Sprintf("/reports/%d/download", id), w, progress)
}
