package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError(t *testing.T) {
	rejected := &client.HTTPError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized", Detail: "Token expired"}
	tests := []struct {
		name     string
		err      error
		wantType clierr.Type
		wantMsg  string
	}{
		{"session ended", &client.SessionEndedError{Rejected: rejected}, clierr.Auth, "qoe login"},
		{"not logged in", fmt.Errorf("wrapped: %w", client.ErrNotLoggedIn), clierr.Auth, "not logged in"},
		{"network", &client.NetworkError{Method: "GET", URL: "http://x", Err: errors.New("connection refused")}, clierr.Network, "connection refused"},
		{"not found", &client.HTTPError{StatusCode: 404, Status: "404 Not Found", Detail: "Project not found"}, clierr.NotFound, "Project not found"},
		{"forbidden", &client.HTTPError{StatusCode: 403, Status: "403 Forbidden"}, clierr.Auth, "403 Forbidden"},
		{"unprocessable", &client.HTTPError{StatusCode: 422, Detail: "email: field required"}, clierr.Validation, "email: field required"},
		{"server", &client.HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}, clierr.Remote, "502 Bad Gateway"},
		{"cancelled", context.Canceled, clierr.Internal, "cancelled"},
		{"other", errors.New("disk full"), clierr.Internal, "disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := userError("Failed to do it", tt.err)
			e, ok := clierr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Contains(t, e.Message, tt.wantMsg)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUserError_KeepsCLIErrors(t *testing.T) {
	assert.NoError(t, userError("x", nil))
	orig := clierr.New(clierr.Validation, "bad input", nil)
	assert.Same(t, orig, userError("x", orig))
	assert.Nil(t, invalid(nil))
}
