package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/persistence"
	"github.com/spf13/cobra"
)

var errKeyringUnavailable = errors.New("keyring unavailable; set PAWPAW_MIRROR_TOKEN instead")

func newSyncCommand(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage cloud mirroring of your activities",
	}
	cmd.AddCommand(
		newSyncStatusCommand(rt),
		newSyncEnableCommand(rt),
		newSyncDisableCommand(rt),
		newSyncLoginCommand(rt),
		newSyncLogoutCommand(rt),
	)
	return cmd
}

func newSyncStatusCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active persistence mode",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			mode := a.controller.Mode()
			fmt.Fprintf(a.out, "Mode:       %s\n", mode)
			fmt.Fprintf(a.out, "Preference: %s\n", enabledLabel(a.preferences.CloudSyncEnabled()))
			fmt.Fprintf(a.out, "Mirror:     %s\n", valueOr(a.config.MirrorURL, "not configured"))
			fmt.Fprintf(a.out, "Records:    %d\n", a.store.Count())
			if a.preferences.CloudSyncEnabled() && mode == persistence.ModeLocalOnly {
				fmt.Fprintln(a.out, noticeStyle.Render("Cloud sync is on but the mirror is unreachable; working local-only."))
			}
			return nil
		}),
	}
}

func newSyncEnableCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Mirror activities to the cloud service",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.controller.Enable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cloud sync enabled (%d activities).\n", a.store.Count())
			return nil
		}),
	}
}

func newSyncDisableCommand(rt *cliRuntime) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Stop mirroring and delete the cloud copy",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if a.controller.Mode() == persistence.ModeCloudMirrored && !assumeYes {
				confirmed, err := a.confirm("Disable cloud sync?",
					"Your cloud copy will be deleted. Records on this device are kept.")
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(a.out, "Cloud sync remains enabled.")
					return nil
				}
			}
			if err := a.controller.Disable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Cloud sync disabled.")
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newSyncLoginCommand(rt *cliRuntime) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the mirror account token in the keyring",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			trimmed := strings.TrimSpace(token)
			if trimmed == "" {
				return errors.New("--token is required")
			}
			if a.credentials == nil {
				return errKeyringUnavailable
			}
			if err := a.credentials.SetMirrorToken(trimmed); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Mirror token saved.")
			return nil
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "Account token issued by the mirror service")
	return cmd
}

func newSyncLogoutCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored mirror token",
		Args:  cobra.NoArgs,
		RunE: rt.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if a.credentials == nil {
				return errKeyringUnavailable
			}
			if err := a.credentials.ClearMirrorToken(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Mirror token removed.")
			return nil
		}),
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
