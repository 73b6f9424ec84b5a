package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taigo/pkg/auth"
	"github.com/harrisonrobin/taigo/pkg/config"
)

func newLoginCmd(a *app) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := a.cfg.BaseURL
			if address != "" {
				base = address
			}
			creds, err := auth.PromptCredentials(a.in, a.out)
			if err != nil {
				return err
			}
			session, err := a.auth.Authenticate(cmd.Context(), creds, base)
			if err != nil {
				return err
			}
			if session.BaseURL != a.cfg.BaseURL {
				a.cfg.BaseURL = session.BaseURL
				if err := config.SaveFile(a.cfgPath, a.cfg); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "Logged in to %s as %s\n", session.BaseURL, creds.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "API address to log in to (default from config)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if purge {
				if err := a.store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Logged out and cleared the local cache")
				return nil
			}
			if err := a.auth.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete every cached project and task list")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "config file:     %s\n", a.cfgPath)
			fmt.Fprintf(a.out, "base_url:        %s\n", a.cfg.BaseURL)
			fmt.Fprintf(a.out, "cache_dir:       %s\n", a.store.Dir())
			fmt.Fprintf(a.out, "log_level:       %s\n", a.cfg.LogLevel)
			fmt.Fprintf(a.out, "request_timeout: %s\n", a.cfg.RequestTimeout)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-url <url>",
		Short: "Set the API address used by login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.BaseURL = args[0]
			if err := config.SaveFile(a.cfgPath, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "API address set to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
