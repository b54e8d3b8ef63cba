package cmd

import (
	"errors"
	"strconv"
	"strings"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/spf13/cobra"
)

var adjustmentStatuses = []string{client.AdjustmentPending, client.AdjustmentAccepted, client.AdjustmentRejected, client.AdjustmentModified}

func adjustmentsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "adjustments",
		Aliases: []string{"adj"},
		Short:   "Review the proposed adjustments of a project",
	}
	cmd.AddCommand(adjustmentListCmd(c), adjustmentShowCmd(c), adjustmentReviewCmd(c), adjustmentDeleteCmd(c),
		adjustmentCreateCmd(c), adjustmentUpdateCmd(c))
	return cmd
}

func adjustmentListCmd(c *cli) *cobra.Command {
	var projectID int
	var status string
	var materialOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the adjustments of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			if status != "" {
				if err := validation.ValidateOneOf("status", status, adjustmentStatuses...); err != nil {
					return invalid(err)
				}
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			adjustments, err := a.client.ListAdjustments(cmd.Context(), projectID, status)
			if err != nil {
				return userError("Failed to list adjustments", err)
			}

			var total float64
			table := newTable(cmd.OutOrStdout(), "ID", "Title", "Type", "Amount", "Confidence", "Material", "Status")
			table.SetColMinWidth(1, 30)
			rows := 0
			for _, adj := range adjustments {
				if materialOnly && !adj.IsMaterial {
					continue
				}
				rows++
				total += adj.Amount
				table.Append([]string{
					strconv.Itoa(adj.ID),
					oneLine(adj.Title),
					adj.AdjustmentType,
					money(adj.Amount),
					percent(adj.ConfidenceScore * 100),
					yesNo(adj.IsMaterial),
					adj.Status,
				})
			}
			if rows == 0 {
				cmd.Println("No adjustments found.")
				return nil
			}
			table.SetFooter([]string{"", "", "Total", money(total), "", "", ""})
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only adjustments with this status [pending, accepted, rejected, modified]")
	cmd.Flags().BoolVarP(&materialOnly, "material", "m", false, "Only material adjustments")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func adjustmentShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an adjustment with its narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("adjustment", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			adj, err := a.client.GetAdjustment(cmd.Context(), id)
			if err != nil {
				return userError("Failed to fetch adjustment", err)
			}
			cmd.Printf("ID: %d\n", adj.ID)
			cmd.Printf("Title: %s\n", adj.Title)
			cmd.Printf("Type: %s\n", adj.AdjustmentType)
			cmd.Printf("Amount: %s\n", money(adj.Amount))
			if adj.DebitAccount != "" || adj.CreditAccount != "" {
				cmd.Printf("Entry: Dr %s / Cr %s\n", adj.DebitAccount, adj.CreditAccount)
			}
			cmd.Printf("Confidence: %s\n", percent(adj.ConfidenceScore*100))
			cmd.Printf("Material: %s\n", yesNo(adj.IsMaterial))
			cmd.Printf("Status: %s\n", adj.Status)
			if adj.Description != "" {
				cmd.Printf("Description: %s\n", adj.Description)
			}
			if adj.Narrative != "" {
				cmd.Printf("Narrative: %s\n", adj.Narrative)
			}
			if adj.ReviewerNotes != "" {
				cmd.Printf("Reviewer notes: %s\n", adj.ReviewerNotes)
			}
			return nil
		},
	}
}

func adjustmentReviewCmd(c *cli) *cobra.Command {
	var status, notes, title string
	var amount float64

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Accept, reject or modify an adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("adjustment", args[0])
			if err != nil {
				return err
			}
			if err := validation.ValidateOneOf("status", status, adjustmentStatuses...); err != nil {
				return invalid(err)
			}
			review := client.AdjustmentReview{Status: status, ReviewerNotes: notes, Title: title}
			if cmd.Flags().Changed("amount") {
				review.Amount = &amount
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			adj, err := a.client.ReviewAdjustment(cmd.Context(), id, review)
			if err != nil {
				return userError("Failed to review adjustment", err)
			}
			cmd.Printf("Adjustment %d is now %s.\n", adj.ID, adj.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Decision [accepted, rejected, modified, pending]")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Reviewer notes")
	cmd.Flags().StringVar(&title, "title", "", "New title (with --status modified)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "New amount (with --status modified)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func adjustmentDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("adjustment", args[0])
			if err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if err := a.client.DeleteAdjustment(cmd.Context(), id); err != nil {
				return userError("Failed to delete adjustment", err)
			}
			cmd.Printf("Adjustment %d deleted.\n", id)
			return nil
		},
	}
}

// adjustmentFields holds the flags shared by create and update.
type adjustmentFields struct {
	title, description, adjType, debit, credit, narrative string
	amount                                                float64
	documentID                                            int
}

func (f *adjustmentFields) register(cmd *cobra.Command) {
	typeHelp := "Adjustment type [" + strings.Join(client.AdjustmentTypes, ", ") + "]"
	cmd.Flags().StringVar(&f.title, "title", "", "Short title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "What the adjustment corrects")
	cmd.Flags().StringVarP(&f.adjType, "type", "t", "", typeHelp)
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "Amount, negative to reduce EBITDA")
	cmd.Flags().StringVar(&f.debit, "debit", "", "Debit account")
	cmd.Flags().StringVar(&f.credit, "credit", "", "Credit account")
	cmd.Flags().StringVar(&f.narrative, "narrative", "", "Narrative for the report")
	cmd.Flags().IntVar(&f.documentID, "document", 0, "ID of the source document")
}

// input copies the changed flags into an AdjustmentInput.
func (f *adjustmentFields) input(cmd *cobra.Command) (client.AdjustmentInput, error) {
	flags := cmd.Flags()
	var in client.AdjustmentInput
	strs := []struct {
		flag string
		val  *string
		dst  **string
	}{
		{"title", &f.title, &in.Title},
		{"description", &f.description, &in.Description},
		{"debit", &f.debit, &in.DebitAccount},
		{"credit", &f.credit, &in.CreditAccount},
		{"narrative", &f.narrative, &in.Narrative},
	}
	for _, s := range strs {
		if flags.Changed(s.flag) {
			*s.dst = s.val
		}
	}
	if flags.Changed("type") {
		if err := validation.ValidateOneOf("type", f.adjType, client.AdjustmentTypes...); err != nil {
			return in, invalid(err)
		}
		in.AdjustmentType = &f.adjType
	}
	if flags.Changed("amount") {
		in.Amount = &f.amount
	}
	if flags.Changed("document") {
		if err := checkID("document", f.documentID); err != nil {
			return in, err
		}
		in.SourceDocumentID = &f.documentID
	}
	return in, nil
}

func adjustmentCreateCmd(c *cli) *cobra.Command {
	var fields adjustmentFields
	var projectID int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an adjustment by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			if err := validation.ValidateNonEmptyString("title", fields.title); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateNonEmptyString("description", fields.description); err != nil {
				return invalid(err)
			}
			in, err := fields.input(cmd)
			if err != nil {
				return err
			}
			in.ProjectID = projectID
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			adj, err := a.client.CreateAdjustment(cmd.Context(), in)
			if err != nil {
				return userError("Failed to create adjustment", err)
			}
			cmd.Printf("Adjustment %d created (%s).\n", adj.ID, money(adj.Amount))
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	fields.register(cmd)
	for _, name := range []string{"project", "title", "description", "type", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func adjustmentUpdateCmd(c *cli) *cobra.Command {
	var fields adjustmentFields
	var status, notes, materialReason string
	var material bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("adjustment", args[0])
			if err != nil {
				return err
			}
			in, err := fields.input(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("status") {
				if err := validation.ValidateOneOf("status", status, adjustmentStatuses...); err != nil {
					return invalid(err)
				}
				in.Status = &status
			}
			if flags.Changed("notes") {
				in.ReviewerNotes = &notes
			}
			if flags.Changed("material") {
				in.IsMaterial = &material
			}
			if flags.Changed("material-reason") {
				in.MaterialityReason = &materialReason
			}
			if in == (client.AdjustmentInput{}) {
				return invalid(errors.New("nothing to update, pass at least one field flag"))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			adj, err := a.client.UpdateAdjustment(cmd.Context(), id, in)
			if err != nil {
				return userError("Failed to update adjustment", err)
			}
			cmd.Printf("Adjustment %d updated (status: %s).\n", adj.ID, adj.Status)
			return nil
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVarP(&status, "status", "s", "", "Status [pending, accepted, rejected, modified]")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Reviewer notes")
	cmd.Flags().BoolVar(&material, "material", false, "Mark as material (or with =false as immaterial)")
	cmd.Flags().StringVar(&materialReason, "material-reason", "", "Why the adjustment is material")
	return cmd
}
