package cmd

import (
	"errors"
	"strconv"
	"time"

	"github.com/qoeplatform/qoe/client"
	"github.com/spf13/cobra"
)

func questionsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Work through the diligence questionnaire",
	}
	cmd.AddCommand(questionListCmd(c), questionAnswerCmd(c))
	return cmd
}

func questionListCmd(c *cli) *cobra.Command {
	var projectID int
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the questions of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkID("project", projectID); err != nil {
				return err
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			questions, err := a.client.ListQuestions(cmd.Context(), projectID)
			if err != nil {
				return userError("Failed to list questions", err)
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Question", "Type", "Priority", "Due", "Answered")
			table.SetColMinWidth(1, 40)
			rows := 0
			for _, q := range questions {
				if openOnly && q.IsAnswered {
					continue
				}
				rows++
				due := datePtr(q.DueDate)
				if q.IsOverdue {
					due += " (overdue)"
				}
				table.Append([]string{strconv.Itoa(q.ID), oneLine(q.Title), q.QuestionType, q.Priority, due, yesNo(q.IsAnswered)})
			}
			if rows == 0 {
				cmd.Println("No questions found.")
				return nil
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&projectID, "project", "p", 0, "Project ID")
	cmd.Flags().BoolVar(&openOnly, "open", false, "Only unanswered questions")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func questionAnswerCmd(c *cli) *cobra.Command {
	var text, notes, day string
	var number float64
	var yes, final bool

	cmd := &cobra.Command{
		Use:   "answer <id>",
		Short: "Answer a question",
		Long:  "Answer a question with exactly one of --text, --number, --bool or --date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("question", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			answer := client.Answer{Notes: notes, IsFinal: final}
			given := 0
			if flags.Changed("text") {
				answer.AnswerText = &text
				given++
			}
			if flags.Changed("number") {
				answer.AnswerNumber = &number
				given++
			}
			if flags.Changed("bool") {
				answer.AnswerBoolean = &yes
				given++
			}
			if flags.Changed("date") {
				t, err := time.Parse("2006-01-02", day)
				if err != nil {
					return invalid(errors.New("date must look like 2024-12-31"))
				}
				answer.AnswerDate = &t
				given++
			}
			if given != 1 {
				return invalid(errors.New("give exactly one of --text, --number, --bool or --date"))
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			saved, err := a.client.AnswerQuestion(cmd.Context(), id, answer)
			if err != nil {
				return userError("Failed to answer question", err)
			}
			cmd.Printf("Answer %d recorded for question %d.\n", saved.ID, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Text answer")
	cmd.Flags().Float64Var(&number, "number", 0, "Numeric answer")
	cmd.Flags().BoolVar(&yes, "bool", false, "Yes/no answer, e.g. --bool=false")
	cmd.Flags().StringVar(&day, "date", "", "Date answer (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Notes for the reviewer")
	cmd.Flags().BoolVar(&final, "final", true, "Mark the answer as final")
	return cmd
}
