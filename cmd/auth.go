package cmd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/qoeplatform/qoe/auth"
	"github.com/qoeplatform/qoe/client"
	"github.com/qoeplatform/qoe/pkg/clierr"
	"github.com/qoeplatform/qoe/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var userRoles = []string{"analyst", "manager", "admin"}

// loginCmd exchanges email and password for a session and stores it.
func loginCmd(c *cli) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the QoE platform",
		Long:  "Login with your email and password. The session is stored locally and refreshed automatically.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if email == "" {
				if email, err = c.promptForInput(cmd, "Email: "); err != nil {
					return invalid(err)
				}
			}
			if err := validation.ValidateEmail(email); err != nil {
				return invalid(err)
			}
			password, err := c.promptForPassword(cmd, "Password: ")
			if err != nil {
				return invalid(err)
			}
			if password == "" {
				return invalid(errors.New("password cannot be empty"))
			}

			session, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				if client.IsStatus(err, http.StatusUnauthorized) {
					return clierr.New(clierr.Auth, "Incorrect email or password.", err)
				}
				return userError("Failed to login", err)
			}
			cmd.Printf("Logged in as %s.\n", displayName(session.User, email))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when omitted)")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if err := a.client.Logout(cmd.Context()); err != nil {
				return userError("Failed to remove the stored session", err)
			}
			cmd.Println("Logged out.")
			return nil
		},
	}
}

// whoamiCmd asks the backend who the stored session belongs to.
func whoamiCmd(c *cli) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			var user *auth.User
			if offline {
				session, ok := a.store.Session(cmd.Context())
				if !ok {
					return userError("Failed to read the session", client.ErrNotLoggedIn)
				}
				user = session.User
				if user == nil {
					cmd.Println("Logged in, profile not cached yet.")
					return nil
				}
			} else if user, err = a.client.CheckAuth(cmd.Context()); err != nil {
				return userError("Failed to check the session", err)
			}

			cmd.Printf("ID: %d\n", user.ID)
			cmd.Printf("Email: %s\n", user.Email)
			cmd.Printf("Name: %s\n", user.FullName)
			cmd.Printf("Role: %s\n", user.Role)
			if creds, ok := a.store.Get(cmd.Context()); ok && !creds.ExpiresAt.IsZero() {
				cmd.Printf("Access token expires: %s\n", date(creds.ExpiresAt))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Show the cached profile without contacting the server")
	return cmd
}

func registerCmd(c *cli) *cobra.Command {
	var email, fullName, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateEmail(email); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateNonEmptyString("name", fullName); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateOneOf("role", role, userRoles...); err != nil {
				return invalid(err)
			}
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			password, err := c.newPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			user, err := a.client.Register(cmd.Context(), client.RegisterRequest{
				Email:    email,
				FullName: strings.TrimSpace(fullName),
				Password: password,
				Role:     role,
			})
			if err != nil {
				return userError("Failed to register", err)
			}
			log.Info().Int("id", user.ID).Msg("Account registered")
			cmd.Printf("Account %s created. Run `qoe login` to start a session.\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name")
	cmd.Flags().StringVarP(&role, "role", "r", "analyst", "Role [analyst, manager, admin]")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// passwdCmd changes the password of the logged-in account.
func passwdCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.get(cmd)
			if err != nil {
				return err
			}
			if _, ok := a.store.Get(cmd.Context()); !ok {
				return userError("Failed to change password", client.ErrNotLoggedIn)
			}
			current, err := c.promptForPassword(cmd, "Current password: ")
			if err != nil {
				return invalid(err)
			}
			next, err := c.newPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			if err := a.client.ChangePassword(cmd.Context(), current, next); err != nil {
				return userError("Failed to change password", err)
			}
			cmd.Println("Password changed.")
			return nil
		},
	}
}

// newPassword asks for a password twice and validates it.
func (c *cli) newPassword(cmd *cobra.Command, prompt string) (string, error) {
	password, err := c.promptForPassword(cmd, prompt)
	if err != nil {
		return "", invalid(err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", invalid(err)
	}
	confirm, err := c.promptForPassword(cmd, "Repeat password: ")
	if err != nil {
		return "", invalid(err)
	}
	if confirm != password {
		return "", invalid(errors.New("passwords do not match"))
	}
	return password, nil
}

func displayName(u *auth.User, fallback string) string {
	if u == nil {
		return fallback
	}
	if u.FullName != "" {
		return u.FullName + " <" + u.Email + ">"
	}
	return u.Email
}
