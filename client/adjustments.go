package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ValidAdjustmentStatus reports whether s is a review status the backend knows.
func ValidAdjustmentStatus(s string) bool {
	switch s {
	case AdjustmentPending, AdjustmentAccepted, AdjustmentRejected, AdjustmentModified:
		return true
	}
	return false
}

// ListAdjustments lists adjustments, optionally narrowed to a project and a status.
func (c *Client) ListAdjustments(ctx context.Context, projectID int, status string) ([]Adjustment, error) {
	if status != "" && !ValidAdjustmentStatus(status) {
		return nil, fmt.Errorf("unknown adjustment status %q", status)
	}
	q := url.Values{}
	if projectID > 0 {
		q.Set("project_id", strconv.Itoa(projectID))
	}
	if status != "" {
		q.Set("status", status)
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/adjustments/", Query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[Adjustment](resp.Body, "adjustments")
}

// GetAdjustment fetches one adjustment.
func (c *Client) GetAdjustment(ctx context.Context, id int) (*Adjustment, error) {
	var a Adjustment
	if err := c.getJSON(ctx, fmt.Sprintf("/adjustments/%d", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ReviewAdjustment records a reviewer decision and returns the updated adjustment.
func (c *Client) ReviewAdjustment(ctx context.Context, id int, review AdjustmentReview) (*Adjustment, error) {
	if !ValidAdjustmentStatus(review.Status) {
		return nil, fmt.Errorf("unknown adjustment status %q", review.Status)
	}
	var out struct {
		Message    string      `json:"message"`
		Adjustment *Adjustment `json:"adjustment"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/adjustments/%d/review", id), review, &out); err != nil {
		return nil, err
	}
	if out.Adjustment == nil {
		return c.GetAdjustment(ctx, id)
	}
	return out.Adjustment, nil
}

// DeleteAdjustment removes an adjustment.
func (c *Client) DeleteAdjustment(ctx context.Context, id int) error {
	return c.doJSON(ctx, NewRequest(http.MethodDelete, fmt.Sprintf("/adjustments/%d", id)), nil)
}

// CreateAdjustment records an adjustment entered by hand. Project, title,
// description, type and amount are required.
func (c *Client) CreateAdjustment(ctx context.Context, in AdjustmentInput) (*Adjustment, error) {
	switch {
	case in.ProjectID <= 0:
		return nil, fmt.Errorf("project ID is required")
	case in.Title == nil || strings.TrimSpace(*in.Title) == "":
		return nil, fmt.Errorf("adjustment title is required")
	case in.Description == nil || strings.TrimSpace(*in.Description) == "":
		return nil, fmt.Errorf("adjustment description is required")
	case in.AdjustmentType == nil:
		return nil, fmt.Errorf("adjustment type is required")
	case in.Amount == nil:
		return nil, fmt.Errorf("adjustment amount is required")
	}
	if err := checkAdjustmentInput(in); err != nil {
		return nil, err
	}
	var a Adjustment
	if err := c.sendJSON(ctx, http.MethodPost, "/adjustments/", in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAdjustment changes the non-nil fields of an adjustment.
func (c *Client) UpdateAdjustment(ctx context.Context, id int, in AdjustmentInput) (*Adjustment, error) {
	if err := checkAdjustmentInput(in); err != nil {
		return nil, err
	}
	in.ProjectID = 0
	var a Adjustment
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/adjustments/%d", id), in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func checkAdjustmentInput(in AdjustmentInput) error {
	if in.AdjustmentType != nil && !slices.Contains(AdjustmentTypes, *in.AdjustmentType) {
		return fmt.Errorf("unknown adjustment type %q", *in.AdjustmentType)
	}
	if in.Status != nil && !ValidAdjustmentStatus(*in.Status) {
		return fmt.Errorf("unknown adjustment status %q", *in.Status)
	}
	return nil
}
