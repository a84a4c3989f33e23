package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/services"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the authorization URL to open in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			authURL, err := a.auth.Initiate(cmd.Context(), sess)
			if err != nil {
				return a.userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL to log in:")
			fmt.Fprintln(out, authURL)
			fmt.Fprintln(out, "Then run: cadence callback <code or redirect URL>")
			return nil
		},
	}
}

func newCallbackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <code|url>",
		Short: "Finish logging in with the code from the provider's redirect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.auth.CompleteCallback(cmd.Context(), sess, codeFromArg(args[0])); err != nil {
				return a.userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.auth.Logout(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// codeFromArg accepts either the bare code or the full redirect address.
func codeFromArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if u, err := url.Parse(arg); err == nil && u.RawQuery != "" {
		if code, ok := services.CallbackCode(u); ok {
			return code
		}
	}
	return arg
}
