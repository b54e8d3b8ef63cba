package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/rs/zerolog/log"
)

// userError turns an error from the client into the message and exit code shown to
// the user. action describes what was attempted, e.g. "Failed to list projects".
func userError(action string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	log.Error().Err(err).Msg(action)

	var httpErr *client.HTTPError
	var netErr *client.NetworkError
	switch {
	case errors.Is(err, client.ErrSessionEnded):
		return clierr.New(clierr.Auth, "Your session has ended. Please run `qoe login` again.", err)
	case errors.Is(err, client.ErrNotLoggedIn):
		return clierr.New(clierr.Auth, "You are not logged in. Please run `qoe login` first.", err)
	case errors.Is(err, context.Canceled):
		return clierr.New(clierr.Internal, action+": cancelled", err)
	case errors.As(err, &netErr):
		return clierr.New(clierr.Network, fmt.Sprintf("%s: cannot reach the server (%v)", action, netErr.Err), err)
	case errors.As(err, &httpErr):
		msg := httpErr.Detail
		if msg == "" {
			msg = httpErr.Status
		}
		return clierr.New(statusType(httpErr.StatusCode), action+": "+msg, err)
	default:
		return clierr.New(clierr.Internal, action+": "+err.Error(), err)
	}
}

func statusType(status int) clierr.Type {
	switch {
	case status == http.StatusNotFound:
		return clierr.NotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return clierr.Auth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return clierr.Validation
	default:
		return clierr.Remote
	}
}

// invalid wraps a local input validation failure.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return clierr.New(clierr.Validation, "Error: "+err.Error(), err)
}
