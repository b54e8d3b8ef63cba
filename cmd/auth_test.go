package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authAPI(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			if in["password"] != "correct-horse" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"A1","refresh_token":"R1","token_type":"bearer","expires_in":1800,
				"user":{"id":1,"email":"analyst@example.com","full_name":"Ana Lyst","role":"analyst"}}`))
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer A1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":1,"email":"analyst@example.com","full_name":"Ana Lyst","role":"manager"}`))
		case "/auth/logout":
			_, _ = w.Write([]byte(`{"message":"Logged out"}`))
		case "/auth/register":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "a-long-password", in["password"])
			_, _ = w.Write([]byte(`{"id":9,"email":"` + in["email"] + `","full_name":"` + in["full_name"] + `","role":"` + in["role"] + `"}`))
		case "/auth/change-password":
			assert.Equal(t, "old-password", r.URL.Query().Get("current_password"))
			assert.Equal(t, "new-password-1", r.URL.Query().Get("new_password"))
			_, _ = w.Write([]byte(`{"message":"Password changed successfully"}`))
		default:
			http.NotFound(w, r)
		}
	}
}

func TestLoginCmd(t *testing.T) {
	c := newTestCLI(t, authAPI(t), nil)
	out, err := run(c, "analyst@example.com\ncorrect-horse\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ana Lyst <analyst@example.com>.")

	creds, ok := c.app.store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "A1", creds.AccessToken)
	assert.False(t, creds.ExpiresAt.IsZero())
}

func TestLoginCmd_EmailFlag(t *testing.T) {
	c := newTestCLI(t, authAPI(t), nil)
	_, err := run(c, "correct-horse\n", "login", "--email", "analyst@example.com")
	require.NoError(t, err)
}

func TestLoginCmd_Failures(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		code  int
		msg   string
	}{
		{"wrong password", "analyst@example.com\nwrong\n", 3, "Incorrect email or password."},
		{"bad email", "not-an-email\ncorrect-horse\n", 2, "email"},
		{"empty password", "analyst@example.com\n\n", 2, "password cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t, authAPI(t), nil)
			_, err := run(c, tt.stdin, "login")
			require.Error(t, err)
			assert.Equal(t, tt.code, clierr.ExitCode(err))
			assert.Contains(t, err.Error(), tt.msg)
			_, ok := c.app.store.Get(context.Background())
			assert.False(t, ok)
		})
	}
}

func TestWhoamiCmd(t *testing.T) {
	c := newTestCLI(t, authAPI(t), loggedIn())
	out, err := run(c, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: analyst@example.com")
	assert.Contains(t, out, "Role: manager")

	session, _ := c.app.store.Session(context.Background())
	assert.Equal(t, "manager", session.User.Role, "profile cache updated")
}

func TestWhoamiCmd_Offline(t *testing.T) {
	var calls atomic.Int32
	c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }), loggedIn())
	out, err := run(c, "", "whoami", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: Ana Lyst")
	assert.Zero(t, calls.Load())
}

func TestWhoamiCmd_NotLoggedIn(t *testing.T) {
	c := newTestCLI(t, authAPI(t), nil)
	_, err := run(c, "", "whoami")
	require.Error(t, err)
	assert.Equal(t, 3, clierr.ExitCode(err))
	assert.Contains(t, err.Error(), "qoe login")
}

func TestLogoutCmd(t *testing.T) {
	c := newTestCLI(t, authAPI(t), loggedIn())
	out, err := run(c, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	_, ok := c.app.store.Get(context.Background())
	assert.False(t, ok)
}

func TestRegisterCmd(t *testing.T) {
	c := newTestCLI(t, authAPI(t), nil)
	out, err := run(c, "a-long-password\na-long-password\n", "register", "-e", "new@example.com", "-n", "New Person")
	require.NoError(t, err)
	assert.Contains(t, out, "Account new@example.com created.")
	_, ok := c.app.store.Get(context.Background())
	assert.False(t, ok, "registering does not log in")
}

func TestRegisterCmd_Validation(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"mismatch", "a-long-password\nanother-password\n", []string{"-e", "new@example.com", "-n", "X"}},
		{"short password", "short\nshort\n", []string{"-e", "new@example.com", "-n", "X"}},
		{"unknown role", "a-long-password\na-long-password\n", []string{"-e", "new@example.com", "-n", "X", "-r", "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called")
			}), nil)
			_, err := run(c, tt.stdin, append([]string{"register"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, 2, clierr.ExitCode(err))
		})
	}
}

func TestPasswdCmd(t *testing.T) {
	c := newTestCLI(t, authAPI(t), loggedIn())
	out, err := run(c, "old-password\nnew-password-1\nnew-password-1\n", "passwd")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed.")

	c = newTestCLI(t, authAPI(t), nil)
	_, err = run(c, "", "passwd")
	assert.Equal(t, 3, clierr.ExitCode(err))
}
