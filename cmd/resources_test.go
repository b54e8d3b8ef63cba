package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentsUploadAndProcess(t *testing.T) {
	var processed atomic.Int32
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/documents/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "5", r.FormValue("project_id"))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			_, _ = w.Write([]byte(`{"id":21,"original_filename":"` + header.Filename + `","status":"pending"}`))
		case "/documents/21/process":
			processed.Add(1)
			_, _ = w.Write([]byte(`{"message":"Document processing started"}`))
		default:
			http.NotFound(w, r)
		}
	}), loggedIn())

	path := filepath.Join(t.TempDir(), "gl_2023.csv")
	require.NoError(t, os.WriteFile(path, []byte("account,amount\n4000,125000\n"), 0o644))

	out, err := run(c, "", "documents", "upload", "-p", "5", "-q", "--process", path)
	require.NoError(t, err)
	assert.Contains(t, out, "as document 21.")
	assert.Contains(t, out, "Processing of document 21 started.")
	assert.EqualValues(t, 1, processed.Load())
}

func TestDocumentsUpload_RejectsBeforeSending(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}), loggedIn())
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	_, err := run(c, "", "documents", "upload", "-p", "5", path)
	assert.Equal(t, 2, clierr.ExitCode(err))
	_, err = run(c, "", "documents", "upload", "-p", "0", path)
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestDocumentsUpload_DirWithChecksum(t *testing.T) {
	var uploaded []string
	var mu sync.Mutex
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		mu.Lock()
		uploaded = append(uploaded, header.Filename)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"id":30,"original_filename":"` + header.Filename + `","status":"pending"}`))
	}), loggedIn())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tb.csv"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$tb.xlsx"), []byte("lock"), 0o644))

	out, err := run(c, "", "documents", "upload", "-p", "5", "-q", "--dir", dir, "--checksum", "md5")
	require.NoError(t, err)
	assert.Equal(t, []string{"tb.csv"}, uploaded)
	assert.Contains(t, out, "5eb63bbbe01eeed093cb22bb8f5acdc3  "+filepath.Join(dir, "tb.csv"))
}

func TestDocumentsUpload_RejectsBadChecksumAndEmptyDir(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	}), loggedIn())

	_, err := run(c, "", "documents", "upload", "-p", "5", "--dir", t.TempDir())
	assert.Equal(t, 2, clierr.ExitCode(err))
	_, err = run(c, "", "documents", "upload", "-p", "5", "--dir", t.TempDir(), "--checksum", "crc32")
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestDocumentsList(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("project_id"))
		_, _ = w.Write([]byte(`[{"id":1,"original_filename":"tb.xlsx","file_size":2048,"document_type":"trial_balance","status":"completed"}]`))
	}), loggedIn())
	out, err := run(c, "", "documents", "list", "-p", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "tb.xlsx")
	assert.Contains(t, out, "trial_balance")
	assert.Contains(t, out, "2.0KiB")
}

func TestDocumentsDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 3000)
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/8/download", r.URL.Path)
		w.Header().Set("Content-Disposition", `attachment; filename="bank statements.pdf"`)
		_, _ = w.Write(payload)
	}), loggedIn())

	dir := t.TempDir()
	out, err := run(c, "", "documents", "download", "8", "-d", dir, "-q")
	require.NoError(t, err)
	target := filepath.Join(dir, "bank statements.pdf")
	assert.Contains(t, out, target)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".qoe-download-*"))
	assert.Empty(t, leftovers)
}

func TestDocumentsDownload_Checksum(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello world"))
	}), loggedIn())

	output := filepath.Join(t.TempDir(), "out", "gl.csv")
	out, err := run(c, "", "documents", "download", "8", "-o", output, "-q", "--checksum", "sha256")
	require.NoError(t, err)
	assert.Contains(t, out, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9  "+output)
}

func TestReportsDownload_FallbackNameAndFailureCleanup(t *testing.T) {
	var fail atomic.Bool
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Report file not found"}`))
			return
		}
		_, _ = io.WriteString(w, "xlsx bytes")
	}), loggedIn())

	dir := t.TempDir()
	_, err := run(c, "", "reports", "download", "9", "-d", dir, "-q")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "report-9"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx bytes", string(got))

	fail.Store(true)
	output := filepath.Join(dir, "out", "r.xlsx")
	_, err = run(c, "", "reports", "download", "9", "-o", output, "-q")
	require.Error(t, err)
	assert.Equal(t, 1, clierr.ExitCode(err))
	assert.NoFileExists(t, output, "partial file removed")
}

func TestAdjustmentsListAndReview(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/adjustments/":
			assert.Equal(t, "pending", r.URL.Query().Get("status"))
			_, _ = w.Write([]byte(`[
				{"id":1,"title":"Owner salary normalization","adjustment_type":"normalization","amount":-120000,"confidence_score":0.9,"is_material":true,"status":"pending"},
				{"id":2,"title":"Small reclass","adjustment_type":"reclassification","amount":500,"confidence_score":0.5,"is_material":false,"status":"pending"}]`))
		case "/adjustments/1/review":
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "modified", in["status"])
			assert.Equal(t, -100000.0, in["amount"])
			_, _ = w.Write([]byte(`{"message":"Adjustment reviewed successfully","adjustment":{"id":1,"status":"modified"}}`))
		default:
			http.NotFound(w, r)
		}
	}), loggedIn())

	out, err := run(c, "", "adjustments", "list", "-p", "5", "-s", "pending", "--material")
	require.NoError(t, err)
	assert.Contains(t, out, "Owner salary normalization")
	assert.NotContains(t, out, "Small reclass")
	assert.Contains(t, out, "-120000.00")

	_, err = run(c, "", "adjustments", "list", "-p", "5", "-s", "approved")
	assert.Equal(t, 2, clierr.ExitCode(err))

	out, err = run(c, "", "adjustments", "review", "1", "-s", "modified", "--amount", "-100000", "-n", "Market salary is 80k")
	require.NoError(t, err)
	assert.Contains(t, out, "Adjustment 1 is now modified.")
}

func TestQuestionsAnswer(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/questions/4/answers", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, false, in["answer_boolean"])
		assert.Equal(t, true, in["is_final"])
		_, _ = w.Write([]byte(`{"id":12,"question_id":4,"answer_boolean":false,"is_final":true}`))
	}), loggedIn())

	out, err := run(c, "", "questions", "answer", "4", "--bool=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Answer 12 recorded for question 4.")

	_, err = run(c, "", "questions", "answer", "4")
	assert.Equal(t, 2, clierr.ExitCode(err), "an answer is required")
	_, err = run(c, "", "questions", "answer", "4", "--text", "yes", "--number", "3")
	assert.Equal(t, 2, clierr.ExitCode(err), "only one answer kind")
	_, err = run(c, "", "questions", "answer", "4", "--date", "31/12/2024")
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestQuestionsList_Open(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"questions":[
			{"id":1,"title":"Were the 2023 statements audited?","question_type":"yes_no","priority":"high","is_answered":true},
			{"id":2,"title":"List related party transactions","question_type":"text","priority":"medium","is_overdue":true,"due_date":"2024-01-31T00:00:00Z"}]}`))
	}), loggedIn())

	out, err := run(c, "", "questions", "list", "-p", "5", "--open")
	require.NoError(t, err)
	assert.NotContains(t, out, "audited")
	assert.Contains(t, out, "related party")
	assert.Contains(t, out, "(overdue)")
}

func TestReportsGenerateAndList(t *testing.T) {
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reports/generate":
			var in map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "pdf_report", in["report_type"])
			assert.Equal(t, true, in["include_pending_adjustments"])
			_, _ = w.Write([]byte(`{"id":3,"project_id":5,"report_type":"pdf_report","status":"pending"}`))
		case "/reports/":
			_, _ = w.Write([]byte(`[{"id":3,"title":"pdf report","report_type":"pdf_report","status":"completed","file_size":1048576,"is_ready_for_download":true}]`))
		}
	}), loggedIn())

	out, err := run(c, "", "reports", "generate", "-p", "5", "-t", "pdf_report", "--include-pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Report 3 queued (status: pending).")

	out, err = run(c, "", "reports", "list", "-p", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0MiB")

	_, err = run(c, "", "reports", "generate", "-p", "5", "-t", "pptx")
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestDocumentsShowAndAdjustmentDelete(t *testing.T) {
	var deleted atomic.Bool
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/documents/4":
			_, _ = w.Write([]byte(`{"id":4,"project_id":5,"original_filename":"tb.xlsx","file_size":2048,"document_type":"trial_balance","classification_confidence":92,"status":"failed","error_message":"no header row","created_at":"2024-03-01T10:00:00Z"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/adjustments/12":
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}), loggedIn())

	out, err := run(c, "", "documents", "show", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "File: tb.xlsx")
	assert.Contains(t, out, "Type: trial_balance (92% confidence)")
	assert.Contains(t, out, "Error: no header row")

	out, err = run(c, "", "adjustments", "delete", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "Adjustment 12 deleted.")
	assert.True(t, deleted.Load())

	_, err = run(c, "", "adjustments", "delete", "99")
	assert.Equal(t, 1, clierr.ExitCode(err))
}

func TestProjectsMetricsSettingsOverviewRecent(t *testing.T) {
	var recalculated atomic.Bool
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects/5/update-metrics":
			recalculated.Store(true)
			_, _ = w.Write([]byte(`{"message":"Project metrics updated successfully"}`))
		case r.URL.Path == "/projects/5/metrics":
			_, _ = w.Write([]byte(`{"total_documents":4,"processed_documents":3,"total_adjustments":10,"reviewed_adjustments":6}`))
		case r.Method == http.MethodPut && r.URL.Path == "/projects/5/settings":
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
		case r.URL.Path == "/projects/dashboard/overview":
			_, _ = w.Write([]byte(`{"total_projects":3,"active_projects":2,"completed_projects":1,"avg_completion_percentage":50,"avg_adjustment_review_percentage":25}`))
		case r.URL.Path == "/projects/recent":
			_, _ = w.Write([]byte(`{"projects":[{"id":9,"name":"Initech Rollup","client_name":"Initech","status":"active"}]}`))
		default:
			http.NotFound(w, r)
		}
	}), loggedIn())

	out, err := run(c, "", "projects", "metrics", "5", "--recalculate")
	require.NoError(t, err)
	assert.True(t, recalculated.Load())
	assert.Contains(t, out, "Project metrics updated successfully")
	assert.Contains(t, out, "Documents: 3 of 4 processed")
	assert.Contains(t, out, "Adjustments: 6 of 10 reviewed")

	out, err = run(c, "", "projects", "settings", "5", "--threshold", "25000", "--percentage", "0.03")
	require.NoError(t, err)
	assert.Contains(t, out, "Project 5 materiality: 25000.00 (3.0%)")
	_, err = run(c, "", "projects", "settings", "5", "--threshold", "25000", "--percentage", "3")
	assert.Equal(t, 2, clierr.ExitCode(err))
	_, err = run(c, "", "projects", "settings", "5", "--threshold", "25000")
	assert.Error(t, err, "percentage is required")

	out, err = run(c, "", "projects", "overview")
	require.NoError(t, err)
	assert.Contains(t, out, "Projects: 3 (2 active, 1 completed)")
	assert.Contains(t, out, "Average completion: 50.0%")

	out, err = run(c, "", "projects", "recent", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Initech Rollup")
	_, err = run(c, "", "projects", "recent", "--limit", "50")
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestAdjustmentsCreateAndUpdate(t *testing.T) {
	var bodies []map[string]any
	var mu sync.Mutex
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		mu.Lock()
		bodies = append(bodies, in)
		mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/adjustments/":
			_, _ = w.Write([]byte(`{"id":40,"project_id":5,"amount":-15000,"status":"pending"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/adjustments/40":
			_, _ = w.Write([]byte(`{"id":40,"status":"accepted"}`))
		default:
			http.NotFound(w, r)
		}
	}), loggedIn())

	out, err := run(c, "", "adjustments", "create", "-p", "5", "--title", "Bonus",
		"-d", "Unrecorded year-end bonus", "-t", "bonus_accrual", "--amount", "-15000", "--document", "21")
	require.NoError(t, err)
	assert.Contains(t, out, "Adjustment 40 created (-15000.00).")

	out, err = run(c, "", "adjustments", "update", "40", "-s", "accepted", "--material", "--narrative", "Normalised bonus")
	require.NoError(t, err)
	assert.Contains(t, out, "Adjustment 40 updated (status: accepted).")

	require.Len(t, bodies, 2)
	assert.Equal(t, 21.0, bodies[0]["source_document_id"])
	assert.Equal(t, map[string]any{"status": "accepted", "is_material": true, "narrative": "Normalised bonus"}, bodies[1])

	_, err = run(c, "", "adjustments", "create", "-p", "5", "--title", "Bonus", "-d", "x", "-t", "magic", "--amount", "1")
	assert.Equal(t, 2, clierr.ExitCode(err))
	_, err = run(c, "", "adjustments", "update", "40")
	assert.Equal(t, 2, clierr.ExitCode(err))
	assert.Len(t, bodies, 2, "rejected input is not sent")
}

func TestDocumentsUpdate(t *testing.T) {
	var sent map[string]any
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/4", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_, _ = w.Write([]byte(`{"id":4,"document_type":"payroll","status":"completed"}`))
	}), loggedIn())

	out, err := run(c, "", "documents", "update", "4", "-t", "payroll", "--confidence", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Document 4 updated (type: payroll, status: completed).")
	assert.Equal(t, map[string]any{"document_type": "payroll", "classification_confidence": 100.0}, sent)

	for _, args := range [][]string{
		{"documents", "update", "4"},
		{"documents", "update", "4", "-t", "invoice"},
		{"documents", "update", "4", "--confidence", "120"},
		{"documents", "update", "4", "-s", "archived"},
	} {
		_, err = run(c, "", args...)
		assert.Equal(t, 2, clierr.ExitCode(err), args)
	}
}
