package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/shelf/internal/config"
	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/shelfclient"
)

// readPassword reads the password from stdin when --password-stdin is set,
// otherwise prompts on the terminal without echo.
func readPassword(cmd *cobra.Command) (string, error) {
	if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal (use --password-stdin)")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// authenticate runs sign-up or sign-in and stores the new session.
func authenticate(cmd *cobra.Command, username string, signUp bool) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var resp *shelfclient.AuthResponse
	if signUp {
		if err := (models.AuthParams{Username: username, Password: password}).Validate(); err != nil {
			return err
		}
		resp, err = s.client.SignUp(ctx, username, password)
	} else {
		resp, err = s.client.SignIn(ctx, username, password)
	}
	if err != nil {
		return err
	}

	if err := config.SetSession(s.path, resp.User.Username, resp.Session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return output.Render(cmd.OutOrStdout(), outputFormat, resp.User, func() string {
		return output.UserLine(resp.User)
	})
}

var signUpCmd = &cobra.Command{
	Use:     "sign-up <username>",
	Short:   "Create an account and sign in",
	GroupID: "account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], true)
	},
}

var signInCmd = &cobra.Command{
	Use:     "sign-in <username>",
	Aliases: []string{"login"},
	Short:   "Sign in to the shelf server",
	GroupID: "account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], false)
	},
}

var signOutCmd = &cobra.Command{
	Use:     "sign-out",
	Aliases: []string{"logout"},
	Short:   "End the session and forget it",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd)
		if err != nil {
			return err
		}
		// An already expired session is still forgotten locally.
		if err := s.client.SignOut(cmd.Context()); err != nil && !errors.Is(err, shelfclient.ErrUnauthorized) {
			return err
		}
		if err := config.ClearSession(s.path); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		if outputFormat == output.FormatText {
			output.Success(cmd.OutOrStdout(), "Signed out")
			return nil
		}
		return output.Render(cmd.OutOrStdout(), outputFormat, map[string]string{"status": "signed_out"}, nil)
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the signed-in user, or change the profile with --name and --email",
	Example: `  shelf whoami
  shelf whoami --name "Ursula" --email ursula@example.com
  shelf whoami --email ""`,
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var p models.ProfileParams
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			p.Name = &name
		}
		if cmd.Flags().Changed("email") {
			email, _ := cmd.Flags().GetString("email")
			p.Email = &email
		}
		if err := p.Validate(); err != nil {
			return err
		}

		s, err := signedIn(cmd)
		if err != nil {
			return err
		}
		var user *models.User
		if p.Name != nil || p.Email != nil {
			user, err = s.client.UpdateProfile(cmd.Context(), p)
		} else {
			user, err = s.client.Me(cmd.Context())
		}
		if err != nil {
			return err
		}
		return output.Render(cmd.OutOrStdout(), outputFormat, user, func() string {
			return output.UserLine(*user)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{signUpCmd, signInCmd} {
		c.Flags().Bool("password-stdin", false, "read the password from stdin")
		rootCmd.AddCommand(c)
	}
	whoamiCmd.Flags().String("name", "", "set the display name (empty clears it)")
	whoamiCmd.Flags().String("email", "", "set the email address (empty clears it)")
	rootCmd.AddCommand(signOutCmd, whoamiCmd)
}
