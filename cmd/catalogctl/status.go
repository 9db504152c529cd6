package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentuity/go-catalog/app"
	"github.com/agentuity/go-catalog/tui"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the health of every provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(_ context.Context, a *app.App) error {
				health := a.Health()
				if format == outputJSON {
					return writeJSON(cmd.OutOrStdout(), health)
				}
				rows := make([][]string, len(health))
				for i, h := range health {
					last := tui.Muted("-")
					if h.LastFailureAt != nil {
						last = h.LastFailureAt.Format(time.RFC3339)
					}
					state := h.State.String()
					if !h.Healthy {
						state = tui.Warning(state)
					}
					rows[i] = []string{string(h.ProviderID), state, strconv.Itoa(h.FailureCount), last}
				}
				fmt.Fprintln(cmd.OutOrStdout(), tui.Table([]string{"PROVIDER", "STATE", "FAILURES", "LAST FAILURE"}, rows))
				return nil
			})
		},
	}
}

func newLangCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lang [code]",
		Short: "Show or change the language used for catalog queries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					if err := a.SetCurrentLanguage(ctx, args[0]); err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"language": a.CurrentLanguage()})
			})
		},
	}
}

func newSignInCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin [email]",
		Short: "Sign in and print the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var email string
			if len(args) == 1 {
				email = args[0]
			} else {
				var err error
				if email, err = tui.Input("Email", "Account to sign in with"); err != nil {
					return errors.Wrap(err, "pass the email as an argument")
				}
			}
			password := flagOrEnv(cmd, "password", "CATALOG_PASSWORD", "")
			if password == "" {
				var err error
				if password, err = tui.Password("Password", "Password for "+email); err != nil {
					return errors.Wrap(err, "use --password or CATALOG_PASSWORD")
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				session, err := a.Auth.SignIn(ctx, email, password)
				if err != nil {
					return err
				}
				user, err := a.Auth.CurrentUser(ctx, session.Token)
				if err != nil {
					return err
				}
				tui.ShowSuccess(cmd.ErrOrStderr(), "signed in as %s", user.Email)
				return writeJSON(cmd.OutOrStdout(), map[string]any{"user": user, "session": session})
			})
		},
	}
	cmd.Flags().String("password", "", "password, prompted for when omitted (env CATALOG_PASSWORD)")
	return cmd
}
