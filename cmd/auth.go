package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/output"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in to the interview service",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lines := readLines(os.Stdin)
		email, password, err := credentials(ctx, cmd, lines)
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.Login(ctx, email, password)
		if err != nil {
			return err
		}
		out := output.NewFormatter(os.Stdout)
		out.Success("Logged in")
		out.User(resp.User)
		return nil
	},
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lines := readLines(os.Stdin)
		email, password, err := credentials(ctx, cmd, lines)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.Register(ctx, email, password, username)
		if err != nil {
			return err
		}
		out := output.NewFormatter(os.Stdout)
		out.Success("Account created")
		out.User(resp.User)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Logout(cmd.Context()); err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Success("Logged out")
		return nil
	},
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if _, err := svc.Refresh(cmd.Context()); err != nil {
			return err
		}
		out := output.NewFormatter(os.Stdout)
		if exp, ok := svc.Client().TokenExpiry(); ok {
			out.Success(fmt.Sprintf("Token refreshed, valid until %s", exp.Local().Format("2006-01-02 15:04")))
			return nil
		}
		out.Success("Token refreshed")
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		output.NewFormatter(os.Stdout).User(svc.CurrentUser())
		return nil
	},
}

// credentials reads --email and --password, prompting for missing values.
func credentials(ctx context.Context, cmd *cobra.Command, lines <-chan string) (string, string, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("INTERVIEWPREP_PASSWORD")
	}

	var err error
	if email == "" {
		if email, err = prompt(ctx, lines, "Email: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = prompt(ctx, lines, "Password: "); err != nil {
			return "", "", err
		}
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return "", "", fmt.Errorf("email and password are required")
	}
	return strings.TrimSpace(email), password, nil
}

func init() {
	for _, c := range []*cobra.Command{authLoginCmd, authRegisterCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("password", "", "account password (or INTERVIEWPREP_PASSWORD)")
	}
	authRegisterCmd.Flags().String("username", "", "display name")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)
}
