package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/operations"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func documentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage the source documents of a project",
	}

	cmd.AddCommand(
		documentListCmd(c),
		documentShowCmd(c),
		documentUploadCmd(c),
		documentDownloadCmd(c),
		documentProcessCmd(c),
		documentUpdateCmd(c),
		documentDeleteCmd(c),
	)
	return cmd
}

func documentListCmd(c *cli) *cobra.Command {
	var projectID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			docs, err := a.client.ListDocuments(cmd.Context(), projectID)
			if err != nil {
				return userError("Failed to list documents", err)
			}
			if len(docs) == 0 {
				cmd.Println("No documents uploaded yet.")
				return nil
			}
			table := newTable(cmd.OutOrStdout(), "ID", "File", "Type", "Size", "Status", "Uploaded")
			for _, d := range docs {
				docType := d.DocumentType
				if docType == "" {
					docType = "-"
				}
				table.Append([]string{
					strconv.Itoa(d.ID),
					d.OriginalFilename,
					docType,
					formatBytes(d.FileSize),
					d.Status,
					date(d.CreatedAt),
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

func documentShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document and its processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			doc, err := a.client.GetDocument(cmd.Context(), id)
			if err != nil {
				return userError("Failed to fetch document", err)
			}
			cmd.Printf("ID: %d\n", doc.ID)
			cmd.Printf("Project: %d\n", doc.ProjectID)
			cmd.Printf("File: %s (%s)\n", doc.OriginalFilename, formatBytes(doc.FileSize))
			if doc.DocumentType != "" {
				cmd.Printf("Type: %s (%d%% confidence)\n", doc.DocumentType, doc.ClassificationConfidence)
			}
			cmd.Printf("Status: %s\n", doc.Status)
			if doc.ErrorMessage != "" {
				cmd.Printf("Error: %s\n", doc.ErrorMessage)
			}
			if doc.RowCount > 0 {
				cmd.Printf("Extracted: %d rows x %d columns\n", doc.RowCount, doc.ColumnCount)
			}
			cmd.Printf("Uploaded: %s\n", date(doc.CreatedAt))
			if doc.ProcessedAt != nil {
				cmd.Printf("Processed: %s\n", date(*doc.ProcessedAt))
			}
			return nil
		},
	}
}

func documentUploadCmd(c *cli) *cobra.Command {
	var projectID int
	var process, quiet, recursive bool
	var dir, checksum string

	cmd := &cobra.Command{
		Use:   "upload [file]...",
		Short: "Upload documents to a project",
		Long: "Upload one or more documents (.xlsx, .xls, .csv, .pdf, .docx) to a project.\n" +
			"With --dir every supported file in the folder is uploaded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			if err := checkAlgo(checksum); err != nil {
				return err
			}
			files := args
			if dir != "" {
				found, err := operations.FindFiles(dir, recursive, client.AllowedDocumentExtensions, operations.DefaultExclusions)
				if err != nil {
					return invalid(fmt.Errorf("failed to scan %s: %w", dir, err))
				}
				files = append(files, found...)
			}
			if len(files) == 0 {
				return invalid(errors.New("no files to upload, pass file paths or --dir"))
			}
			for _, path := range files {
				if err := client.CheckDocumentFile(path); err != nil {
					return invalid(fmt.Errorf("%s: %w", path, err))
				}
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}

			var sums []operations.HashResult
			if checksum != "" {
				sums = operations.HashFiles(cmd.Context(), files, checksum, a.cfg.Sync.Workers)
			}

			var progress io.Writer
			if !quiet {
				progress = cmd.ErrOrStderr()
			}
			for i, path := range files {
				doc, err := a.client.UploadDocument(cmd.Context(), projectID, path, progress)
				if err != nil {
					return userError("Failed to upload "+path, err)
				}
				cmd.Printf("Uploaded %s as document %d.\n", path, doc.ID)
				if sums != nil {
					if sums[i].Err != nil {
						log.Warn().Err(sums[i].Err).Str("file", path).Msg("Failed to compute checksum")
					} else {
						cmd.Printf("%s  %s\n", sums[i].Hash, path)
					}
				}
				if !process {
					continue
				}
				msg, err := a.client.ProcessDocument(cmd.Context(), doc.ID)
				if err != nil {
					return userError(fmt.Sprintf("Failed to start processing of document %d", doc.ID), err)
				}
				log.Info().Int("document", doc.ID).Str("message", msg).Msg("Processing started")
				cmd.Printf("Processing of document %d started.\n", doc.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	cmd.Flags().StringVar(&dir, "dir", "", "Upload every supported file in this folder")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subfolders of --dir")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Print a digest of each uploaded file [md5, sha1, sha256, sha512]")
	cmd.Flags().BoolVar(&process, "process", false, "Start processing each document after upload")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress bar")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func documentDownloadCmd(c *cli) *cobra.Command {
	var dir, output string
	var quiet bool
	var checksum string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the original file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
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
			path, sum, err := saveDownload(cmd, output, dir, fmt.Sprintf("document-%d", id), quiet, checksum, func(w, progress io.Writer) (string, error) {
				return a.client.DownloadDocument(cmd.Context(), id, w, progress)
			})
			if err != nil {
				return userError("Failed to download document", err)
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

func documentProcessCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "process <id>",
		Short: "Extract data and generate adjustments for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			msg, err := a.client.ProcessDocument(cmd.Context(), id)
			if err != nil {
				return userError("Failed to start processing", err)
			}
			if msg == "" {
				msg = "Processing started."
			}
			cmd.Println(msg)
			return nil
		},
	}
}

func documentDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if err := a.client.DeleteDocument(cmd.Context(), id); err != nil {
				return userError("Failed to delete document", err)
			}
			cmd.Printf("Document %d deleted.\n", id)
			return nil
		},
	}
}

func documentUpdateCmd(c *cli) *cobra.Command {
	var docType, status, notes, errMsg string
	var confidence int

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Correct the classification or status of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var in client.DocumentInput
			if flags.Changed("type") {
				if err := validation.ValidateOneOf("type", docType, client.DocumentTypes...); err != nil {
					return invalid(err)
				}
				in.DocumentType = &docType
			}
			if flags.Changed("status") {
				if err := validation.ValidateOneOf("status", status, client.DocumentStatuses...); err != nil {
					return invalid(err)
				}
				in.Status = &status
			}
			if flags.Changed("confidence") {
				if confidence < 0 || confidence > 100 {
					return invalid(fmt.Errorf("confidence must be between 0 and 100, got %d", confidence))
				}
				in.ClassificationConfidence = &confidence
			}
			if flags.Changed("notes") {
				in.ProcessingNotes = &notes
			}
			if flags.Changed("error") {
				in.ErrorMessage = &errMsg
			}
			if in == (client.DocumentInput{}) {
				return invalid(errors.New("nothing to update, pass at least one field flag"))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			d, err := a.client.UpdateDocument(cmd.Context(), id, in)
			if err != nil {
				return userError("Failed to update document", err)
			}
			cmd.Printf("Document %d updated (type: %s, status: %s).\n", d.ID, d.DocumentType, d.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type ["+strings.Join(client.DocumentTypes, ", ")+"]")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "Classification confidence [0-100]")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Status ["+strings.Join(client.DocumentStatuses, ", ")+"]")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Processing notes")
	cmd.Flags().StringVar(&errMsg, "error", "", "Error message")
	return cmd
}
