package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qoeplatform/qoe/auth"
	"github.com/rs/zerolog/log"
)

// ErrNotLoggedIn is returned by calls that need a stored session when there is none.
var ErrNotLoggedIn = errors.New("not logged in")

// tokenResponse covers both the login and the refresh payloads.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         *auth.User `json:"user"`
}

func (t tokenResponse) credentials(now time.Time) auth.Credentials {
	return auth.Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    auth.ExpiryFrom(now, t.AccessToken, t.ExpiresIn),
	}
}

// Login exchanges email and password for a session and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password cannot be empty")
	}
	req, err := NewJSONRequest(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	req.Anonymous = true

	var tok tokenResponse
	if err := c.doJSON(ctx, req, &tok); err != nil {
		return nil, err
	}
	creds := tok.credentials(time.Now())
	if !creds.Complete() {
		return nil, fmt.Errorf("login response did not include both tokens")
	}
	if err := c.store.Set(ctx, creds, tok.User); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if tok.User == nil {
		// Older backends only return tokens; fill the profile in.
		if _, err := c.CheckAuth(ctx); err != nil {
			log.Warn().Err(err).Msg("Logged in but could not load the user profile")
		}
	}
	log.Info().Str("email", email).Msg("Login successful")
	session, _ := c.store.Session(ctx)
	return session, nil
}

// Logout tells the backend the session is over and always clears it locally.
// Only a failure to clear the local session is returned.
func (c *Client) Logout(ctx context.Context) error {
	if _, ok := c.store.Get(ctx); ok {
		if _, err := c.Do(ctx, NewRequest(http.MethodPost, "/auth/logout")); err != nil {
			log.Warn().Err(err).Msg("Backend logout failed, clearing local session anyway")
		}
	}
	return c.store.Clear(ctx)
}

// CheckAuth asks the backend who the stored token belongs to and refreshes the
// cached profile. Any failure means the identity is unknown.
func (c *Client) CheckAuth(ctx context.Context) (*auth.User, error) {
	if _, ok := c.store.Get(ctx); !ok {
		return nil, ErrNotLoggedIn
	}
	var user auth.User
	if err := c.getJSON(ctx, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	// The token may have been rotated while the call was in flight.
	if creds, ok := c.store.Get(ctx); ok {
		if err := c.store.Set(ctx, creds, &user); err != nil {
			log.Warn().Err(err).Msg("Failed to update cached user profile")
		}
	}
	return &user, nil
}

// RegisterRequest is the payload of a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*auth.User, error) {
	req, err := NewJSONRequest(http.MethodPost, "/auth/register", in)
	if err != nil {
		return nil, err
	}
	req.Anonymous = true
	var user auth.User
	if err := c.doJSON(ctx, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword updates the password of the logged-in account.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := NewRequest(http.MethodPost, "/auth/change-password")
	req.Query = map[string][]string{
		"current_password": {current},
		"new_password":     {next},
	}
	return c.doJSON(ctx, req, nil)
}

// PerformTokenRefresh exchanges a refresh token for a new pair. It implements
// auth.TokenRefresher. A response without refresh_token keeps the old one.
func (c *Client) PerformTokenRefresh(ctx context.Context, refreshToken string) (auth.Credentials, error) {
	req, err := NewJSONRequest(http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return auth.Credentials{}, err
	}
	req.Anonymous = true
	// Some deployments read the token from the query string instead of the body.
	req.Query = map[string][]string{"refresh_token": {refreshToken}}

	var tok tokenResponse
	if err := c.doJSON(ctx, req, &tok); err != nil {
		return auth.Credentials{}, fmt.Errorf("refresh request failed: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return auth.Credentials{}, fmt.Errorf("refresh response did not include an access token")
	}
	return tok.credentials(time.Now()), nil
}
