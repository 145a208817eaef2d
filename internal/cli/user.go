package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"usos/internal/security"
)

// NewCreateUserCommand creates the create-user command.
func NewCreateUserCommand(opts *RootOptions) *cobra.Command {
	var email, name, familyID string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user profile",
		Long: `Create a profile with a new id, optionally placed straight into a family
without a join request.

Examples:
  usos-admin create-user --email sam@example.com
  usos-admin create-user --email sam@example.com --name Sam --family <family-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var family *string
			if familyID != "" {
				family = &familyID
			}
			user, err := a.Admin.CreateUser(cmd.Context(), email, name, family)
			if err != nil {
				return failed("failed to create user", err)
			}
			return opts.output(cmd).Success(user,
				fmt.Sprintf("Created user %s (%s)", user.ID, user.Email))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email's local part)")
	cmd.Flags().StringVar(&familyID, "family", "", "family to place the user in")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

type tokenOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		userID, email, name string
		admin               bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token",
		Long: `Mint a bearer token signed with JWT_SECRET, for a user or, with --admin,
for the /admin endpoints.

Examples:
  usos-admin token --user <user-id> --email sam@example.com
  usos-admin token --admin --user ops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tokens, err := security.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenDuration)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid token settings", err)
			}

			var (
				token   string
				expires time.Time
			)
			if admin {
				token, expires, err = tokens.IssueAdmin(userID)
			} else {
				token, expires, err = tokens.Issue(userID, email, name)
			}
			if err != nil {
				return failed("failed to mint token", err)
			}
			return opts.output(cmd).Success(tokenOutput{Token: token, ExpiresAt: expires}, token)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "token subject: the user id, or a name for admin tokens (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "mint an admin token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewHashPasswordCommand creates the hash-password command.
func NewHashPasswordCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long: `Print a bcrypt hash of the password. The password is read from stdin
when not given as an argument.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := security.HashPassword(password)
			if err != nil {
				return failed("failed to hash password", err)
			}
			return opts.output(cmd).Success(map[string]string{"hash": hash}, hash)
		},
	}
}
