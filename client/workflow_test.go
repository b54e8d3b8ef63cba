package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/qoeplatform/qoe/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectMetricsAndRecalculate(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/projects/7/metrics":
			_, _ = w.Write([]byte(`{"total_documents":4,"processed_documents":3,"total_adjustments":10,"reviewed_adjustments":6}`))
		case r.Method == http.MethodPost && r.URL.Path == "/projects/7/update-metrics":
			_, _ = w.Write([]byte(`{"message":"Project metrics updated successfully"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	msg, err := c.RecalculateProjectMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Project metrics updated successfully", msg)

	m, err := c.ProjectMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, m.ProcessedDocuments)
	assert.Equal(t, 6, m.ReviewedAdjustments)
}

func TestUpdateProjectSettings(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/7/settings", r.URL.Path)
		var in client.ProjectSettings
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(in)
	})
	ctx := context.Background()

	out, err := c.UpdateProjectSettings(ctx, 7, client.ProjectSettings{MaterialityThreshold: 25000, MaterialityPercentage: 0.03})
	require.NoError(t, err)
	assert.Equal(t, 25000.0, out.MaterialityThreshold)
	assert.Equal(t, 0.03, out.MaterialityPercentage)

	_, err = c.UpdateProjectSettings(ctx, 7, client.ProjectSettings{MaterialityPercentage: 1.5})
	assert.Error(t, err)
	_, err = c.UpdateProjectSettings(ctx, 7, client.ProjectSettings{MaterialityThreshold: -1})
	assert.Error(t, err)
}

func TestDashboardOverviewAndRecentProjects(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/dashboard/overview":
			_, _ = w.Write([]byte(`{"total_projects":3,"active_projects":2,"completed_projects":1,"avg_completion_percentage":55.5}`))
		case "/projects/recent":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"projects":[{"id":9,"name":"Initech"},{"id":8,"name":"Globex"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	m, err := c.DashboardOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, m.TotalProjects)
	assert.Equal(t, 55.5, m.AvgCompletionPercentage)

	projects, err := c.RecentProjects(ctx, 2)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, 9, projects[0].ID)

	_, err = c.RecentProjects(ctx, client.MaxRecentProjects+1)
	assert.Error(t, err)
}

func TestCreateAdjustment(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/adjustments/", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, 5.0, in["project_id"])
		assert.Equal(t, "bonus_accrual", in["adjustment_type"])
		assert.NotContains(t, in, "status", "unset fields are not sent")
		_, _ = w.Write([]byte(`{"id":40,"project_id":5,"title":"Bonus","amount":-15000,"status":"pending"}`))
	})
	ctx := context.Background()
	title, desc, typ, amount := "Bonus", "Unrecorded year-end bonus", "bonus_accrual", -15000.0

	adj, err := c.CreateAdjustment(ctx, client.AdjustmentInput{ProjectID: 5, Title: &title, Description: &desc, AdjustmentType: &typ, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 40, adj.ID)

	_, err = c.CreateAdjustment(ctx, client.AdjustmentInput{ProjectID: 5, Title: &title, Description: &desc, AdjustmentType: &typ})
	assert.Error(t, err, "amount is required")
	bogus := "magic"
	_, err = c.CreateAdjustment(ctx, client.AdjustmentInput{ProjectID: 5, Title: &title, Description: &desc, AdjustmentType: &bogus, Amount: &amount})
	assert.Error(t, err)
}

func TestUpdateAdjustment_SendsOnlySetFields(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adjustments/40", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]any{"is_material": true, "materiality_reason": "Above threshold"}, in)
		_, _ = w.Write([]byte(`{"id":40,"is_material":true,"status":"pending"}`))
	})
	material, reason := true, "Above threshold"
	adj, err := c.UpdateAdjustment(context.Background(), 40, client.AdjustmentInput{ProjectID: 5, IsMaterial: &material, MaterialityReason: &reason})
	require.NoError(t, err)
	assert.True(t, adj.IsMaterial)
}

func TestUpdateDocument(t *testing.T) {
	c := loggedInClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/documents/4", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]any{"document_type": "payroll", "classification_confidence": 100.0}, in)
		_, _ = w.Write([]byte(`{"id":4,"document_type":"payroll","classification_confidence":100,"status":"completed"}`))
	})
	ctx := context.Background()
	typ, confidence := "payroll", 100

	d, err := c.UpdateDocument(ctx, 4, client.DocumentInput{DocumentType: &typ, ClassificationConfidence: &confidence})
	require.NoError(t, err)
	assert.Equal(t, "payroll", d.DocumentType)

	bad := 101
	_, err = c.UpdateDocument(ctx, 4, client.DocumentInput{ClassificationConfidence: &bad})
	assert.Error(t, err)
	status := "archived"
	_, err = c.UpdateDocument(ctx, 4, client.DocumentInput{Status: &status})
	assert.Error(t, err)
}
