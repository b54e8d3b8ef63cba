package client

import (
	"encoding/json"
	"time"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
	ProjectOnHold    = "on_hold"
)

// Adjustment review statuses.
const (
	AdjustmentPending  = "pending"
	AdjustmentAccepted = "accepted"
	AdjustmentRejected = "rejected"
	AdjustmentModified = "modified"
)

// AdjustmentTypes are the adjustment categories the backend accepts.
var AdjustmentTypes = []string{
	"revenue_recognition", "expense_accrual", "depreciation", "inventory_valuation",
	"bad_debt", "prepaid_expenses", "accrued_liabilities", "payroll_accrual",
	"rent_adjustment", "insurance_adjustment", "tax_adjustment", "intercompany_elimination",
	"reclassification", "write_off", "bonus_accrual", "commission_accrual",
	"professional_fees", "litigation_reserve", "warranty_reserve", "stock_compensation",
	"goodwill_impairment", "asset_impairment", "lease_adjustment", "pension_adjustment",
	"foreign_exchange", "restructuring", "acquisition_adjustment", "other",
}

// DocumentTypes are the classifications a document can carry.
var DocumentTypes = []string{
	"general_ledger", "profit_loss", "balance_sheet", "trial_balance",
	"payroll", "cash_flow", "supporting_docs", "other",
}

// DocumentStatuses are the processing states of a document.
var DocumentStatuses = []string{"pending", "processing", "completed", "error"}

// Report types.
const (
	ReportExcelDatabook = "excel_databook"
	ReportWord          = "word_report"
	ReportPDF           = "pdf_report"
	ReportSummary       = "summary_report"
)

// Project is a due diligence engagement.
type Project struct {
	ID                         int        `json:"id"`
	Name                       string     `json:"name"`
	Description                string     `json:"description,omitempty"`
	ClientName                 string     `json:"client_name"`
	MaterialityThreshold       float64    `json:"materiality_threshold"`
	MaterialityPercentage      float64    `json:"materiality_percentage"`
	Status                     string     `json:"status"`
	OwnerID                    int        `json:"owner_id"`
	CreatedBy                  int        `json:"created_by"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  *time.Time `json:"updated_at,omitempty"`
	CompletedAt                *time.Time `json:"completed_at,omitempty"`
	TotalDocuments             int        `json:"total_documents"`
	ProcessedDocuments         int        `json:"processed_documents"`
	TotalAdjustments           int        `json:"total_adjustments"`
	ReviewedAdjustments        int        `json:"reviewed_adjustments"`
	QACompleted                bool       `json:"qa_completed"`
	QANotes                    string     `json:"qa_notes,omitempty"`
	CompletionPercentage       float64    `json:"completion_percentage"`
	AdjustmentReviewPercentage float64    `json:"adjustment_review_percentage"`
	IsReadyForExport           bool       `json:"is_ready_for_export"`
}

// ProjectList is one page of projects.
type ProjectList struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Pages    int       `json:"pages"`
}

// ProjectDashboard is the progress summary of a project.
type ProjectDashboard struct {
	ID                         int        `json:"id"`
	Name                       string     `json:"name"`
	ClientName                 string     `json:"client_name"`
	Status                     string     `json:"status"`
	CompletionPercentage       float64    `json:"completion_percentage"`
	AdjustmentReviewPercentage float64    `json:"adjustment_review_percentage"`
	TotalDocuments             int        `json:"total_documents"`
	ProcessedDocuments         int        `json:"processed_documents"`
	TotalAdjustments           int        `json:"total_adjustments"`
	ReviewedAdjustments        int        `json:"reviewed_adjustments"`
	QACompleted                bool       `json:"qa_completed"`
	IsReadyForExport           bool       `json:"is_ready_for_export"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  *time.Time `json:"updated_at,omitempty"`
}

// ProjectInput creates or updates a project. Nil fields are left untouched on update.
type ProjectInput struct {
	Name                  *string  `json:"name,omitempty"`
	Description           *string  `json:"description,omitempty"`
	ClientName            *string  `json:"client_name,omitempty"`
	MaterialityThreshold  *float64 `json:"materiality_threshold,omitempty"`
	MaterialityPercentage *float64 `json:"materiality_percentage,omitempty"`
	Status                *string  `json:"status,omitempty"`
	QACompleted           *bool    `json:"qa_completed,omitempty"`
	QANotes               *string  `json:"qa_notes,omitempty"`
}

// ProjectMetrics are progress counters, for one project or summed over all
// projects the user can see.
type ProjectMetrics struct {
	TotalProjects                 int     `json:"total_projects"`
	ActiveProjects                int     `json:"active_projects"`
	CompletedProjects             int     `json:"completed_projects"`
	TotalDocuments                int     `json:"total_documents"`
	ProcessedDocuments            int     `json:"processed_documents"`
	TotalAdjustments              int     `json:"total_adjustments"`
	ReviewedAdjustments           int     `json:"reviewed_adjustments"`
	AvgCompletionPercentage       float64 `json:"avg_completion_percentage"`
	AvgAdjustmentReviewPercentage float64 `json:"avg_adjustment_review_percentage"`
}

// ProjectSettings hold the materiality rules of a project.
type ProjectSettings struct {
	MaterialityThreshold  float64 `json:"materiality_threshold"`
	MaterialityPercentage float64 `json:"materiality_percentage"`
}

// DocumentInput updates the classification or status of a document. Nil fields are left untouched.
type DocumentInput struct {
	DocumentType             *string `json:"document_type,omitempty"`
	ClassificationConfidence *int    `json:"classification_confidence,omitempty"`
	Status                   *string `json:"status,omitempty"`
	ErrorMessage             *string `json:"error_message,omitempty"`
	ProcessingNotes          *string `json:"processing_notes,omitempty"`
}

// Document is an uploaded source file.
type Document struct {
	ID                       int            `json:"id"`
	ProjectID                int            `json:"project_id"`
	Filename                 string         `json:"filename"`
	OriginalFilename         string         `json:"original_filename"`
	FileSize                 int64          `json:"file_size"`
	MimeType                 string         `json:"mime_type"`
	DocumentType             string         `json:"document_type"`
	ClassificationConfidence int            `json:"classification_confidence"`
	Status                   string         `json:"status"`
	ErrorMessage             string         `json:"error_message,omitempty"`
	ExtractedData            map[string]any `json:"extracted_data,omitempty"`
	RowCount                 int            `json:"row_count"`
	ColumnCount              int            `json:"column_count"`
	CreatedAt                time.Time      `json:"created_at"`
	ProcessedAt              *time.Time     `json:"processed_at,omitempty"`
}

// Adjustment is a proposed Quality of Earnings adjustment.
type Adjustment struct {
	ID               int        `json:"id"`
	ProjectID        int        `json:"project_id"`
	SourceDocumentID *int       `json:"source_document_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	AdjustmentType   string     `json:"adjustment_type"`
	Amount           float64    `json:"amount"`
	DebitAccount     string     `json:"debit_account,omitempty"`
	CreditAccount    string     `json:"credit_account,omitempty"`
	Narrative        string     `json:"narrative,omitempty"`
	ConfidenceScore  float64    `json:"confidence_score"`
	RuleApplied      string     `json:"rule_applied,omitempty"`
	Status           string     `json:"status"`
	ReviewerNotes    string     `json:"reviewer_notes,omitempty"`
	IsMaterial       bool       `json:"is_material"`
	CreatedAt        time.Time  `json:"created_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
}

// AdjustmentInput creates an adjustment by hand or edits one. On update nil fields
// are left untouched and ProjectID is ignored.
type AdjustmentInput struct {
	ProjectID         int      `json:"project_id,omitempty"`
	SourceDocumentID  *int     `json:"source_document_id,omitempty"`
	Title             *string  `json:"title,omitempty"`
	Description       *string  `json:"description,omitempty"`
	AdjustmentType    *string  `json:"adjustment_type,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`
	DebitAccount      *string  `json:"debit_account,omitempty"`
	CreditAccount     *string  `json:"credit_account,omitempty"`
	Narrative         *string  `json:"narrative,omitempty"`
	Status            *string  `json:"status,omitempty"`
	ReviewerNotes     *string  `json:"reviewer_notes,omitempty"`
	IsMaterial        *bool    `json:"is_material,omitempty"`
	MaterialityReason *string  `json:"materiality_reason,omitempty"`
}

// AdjustmentReview is a reviewer's decision. Amount and text fields only matter
// for the "modified" status.
type AdjustmentReview struct {
	Status        string   `json:"status"`
	ReviewerNotes string   `json:"reviewer_notes,omitempty"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
}

// Question is an item of the diligence questionnaire.
type Question struct {
	ID            int        `json:"id"`
	ProjectID     int        `json:"project_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	QuestionType  string     `json:"question_type"`
	Options       []string   `json:"options,omitempty"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	IsAIGenerated bool       `json:"is_ai_generated"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	IsAnswered    bool       `json:"is_answered"`
	IsOverdue     bool       `json:"is_overdue"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Answer responds to a question.
type Answer struct {
	ID            int        `json:"id,omitempty"`
	QuestionID    int        `json:"question_id"`
	AnswerText    *string    `json:"answer_text,omitempty"`
	AnswerNumber  *float64   `json:"answer_number,omitempty"`
	AnswerDate    *time.Time `json:"answer_date,omitempty"`
	AnswerBoolean *bool      `json:"answer_boolean,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	IsFinal       bool       `json:"is_final"`
}

// Report is a generated deliverable.
type Report struct {
	ID                  int        `json:"id"`
	ProjectID           int        `json:"project_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	ReportType          string     `json:"report_type"`
	Status              string     `json:"status"`
	Filename            string     `json:"filename,omitempty"`
	FileSize            int64      `json:"file_size,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	QACompleted         bool       `json:"qa_completed"`
	AdjustmentsIncluded int        `json:"adjustments_included"`
	IsReadyForDownload  bool       `json:"is_ready_for_download"`
	CreatedAt           time.Time  `json:"created_at"`
	GeneratedAt         *time.Time `json:"generated_at,omitempty"`
}

// ReportRequest asks the backend to generate a report.
type ReportRequest struct {
	ProjectID                  int            `json:"project_id"`
	ReportType                 string         `json:"report_type"`
	Title                      string         `json:"title"`
	Description                string         `json:"description,omitempty"`
	Config                     map[string]any `json:"config,omitempty"`
	IncludeRejectedAdjustments bool           `json:"include_rejected_adjustments"`
	IncludePendingAdjustments  bool           `json:"include_pending_adjustments"`
}

// Message is the generic acknowledgement body of action endpoints.
type Message struct {
	Message string `json:"message"`
}

// decodeList accepts either a bare JSON array or an envelope holding it under key.
// List endpoints of the backend have used both shapes.
func decodeList[T any](body []byte, key string) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[key]
	if !ok {
		return []T{}, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
