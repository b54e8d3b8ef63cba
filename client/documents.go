package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AllowedDocumentExtensions are the file types the backend accepts.
var AllowedDocumentExtensions = []string{".xlsx", ".xls", ".csv", ".pdf", ".docx"}

// MaxUploadSize mirrors the backend's upload limit.
const MaxUploadSize = 100 << 20

// ErrUnsupportedFileType is returned before uploading a file the backend would reject.
var ErrUnsupportedFileType = fmt.Errorf("unsupported file type, allowed: %s", strings.Join(AllowedDocumentExtensions, ", "))

// CheckDocumentFile reports whether name has an accepted extension.
func CheckDocumentFile(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedDocumentExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", filepath.Base(name), ErrUnsupportedFileType)
}

// ListDocuments lists the documents of a project. projectID 0 lists all.
func (c *Client) ListDocuments(ctx context.Context, projectID int) ([]Document, error) {
	req := NewRequest(http.MethodGet, "/documents/")
	if projectID > 0 {
		req.Query = url.Values{"project_id": {strconv.Itoa(projectID)}}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeList[Document](resp.Body, "documents")
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, id int) (*Document, error) {
	var d Document
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDocument changes the classification or status of a document.
func (c *Client) UpdateDocument(ctx context.Context, id int, in DocumentInput) (*Document, error) {
	if in.DocumentType != nil && !slices.Contains(DocumentTypes, *in.DocumentType) {
		return nil, fmt.Errorf("unknown document type %q", *in.DocumentType)
	}
	if in.Status != nil && !slices.Contains(DocumentStatuses, *in.Status) {
		return nil, fmt.Errorf("unknown document status %q", *in.Status)
	}
	if in.ClassificationConfidence != nil && (*in.ClassificationConfidence < 0 || *in.ClassificationConfidence > 100) {
		return nil, fmt.Errorf("classification confidence must be between 0 and 100")
	}
	var d Document
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/documents/%d", id), in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UploadDocument sends the file at path to a project. The whole multipart body is
// built in memory so the request can be replayed after a token refresh; the
// client's rate limit applies while it is sent.
func (c *Client) UploadDocument(ctx context.Context, projectID int, path string, progress io.Writer) (*Document, error) {
	if err := CheckDocumentFile(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > MaxUploadSize {
		return nil, fmt.Errorf("%s is %d bytes, larger than the %d byte upload limit", path, info.Size(), MaxUploadSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("project_id", strconv.Itoa(projectID)); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req := NewRequest(http.MethodPost, "/documents/upload")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Body = buf.Bytes()
	req.Upload = true
	req.Progress = progress
	req.Label = filepath.Base(path)

	log.Info().Str("file", path).Int("project_id", projectID).Int64("bytes", info.Size()).Msg("Uploading document")
	var d Document
	if err := c.doJSON(ctx, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DownloadDocument streams the original file of a document into w and returns the
// server-suggested file name.
func (c *Client) DownloadDocument(ctx context.Context, id int, w io.Writer, progress io.Writer) (string, error) {
	return c.download(ctx, fmt.Sprintf("/documents/%d/download", id), w, progress)
}

// ProcessDocument queues extraction and adjustment generation for a document.
func (c *Client) ProcessDocument(ctx context.Context, id int) (string, error) {
	var msg Message
	if err := c.doJSON(ctx, NewRequest(http.MethodPost, fmt.Sprintf("/documents/%d/process", id)), &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id int) error {
	return c.doJSON(ctx, NewRequest(http.MethodDelete, fmt.Sprintf("/documents/%d", id)), nil)
}
