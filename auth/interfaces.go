package auth

import "context"

// TokenStorer defines the contract for any component that holds the current session credentials.
type TokenStorer interface {
	Get(ctx context.Context) (Credentials, bool)
	UpdateCredentials(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// TokenRefresher defines the contract for any component that can exchange a refresh token for new credentials.
// An empty RefreshToken in the result means the server kept the old refresh token.
type TokenRefresher interface {
	PerformTokenRefresh(ctx context.Context, refreshToken string) (Credentials, error)
}

// SessionReloader is implemented by storers whose session may be changed by other
// processes. The refresh path re-reads it before acting on a rejected token.
type SessionReloader interface {
	Reload(ctx context.Context) error
}
