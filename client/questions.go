package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListQuestions lists the questionnaire of a project.
func (c *Client) ListQuestions(ctx context.Context, projectID int) ([]Question, error) {
	q := url.Values{}
	if projectID > 0 {
		q.Set("project_id", strconv.Itoa(projectID))
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/questions/", Query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[Question](resp.Body, "questions")
}

// AnswerQuestion submits an answer. At least one answer field must be set.
func (c *Client) AnswerQuestion(ctx context.Context, questionID int, a Answer) (*Answer, error) {
	if a.AnswerText == nil && a.AnswerNumber == nil && a.AnswerDate == nil && a.AnswerBoolean == nil {
		return nil, fmt.Errorf("answer is empty")
	}
	a.QuestionID = questionID
	var out Answer
	if err := c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/questions/%d/answers", questionID), a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
