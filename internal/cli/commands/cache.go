package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/citysdk/layercatalog/internal/cli/config"
	"github.com/citysdk/layercatalog/internal/cli/ui"
)

var cacheYesFlag bool

// confirm asks a yes/no question on the terminal. Tests replace it.
var confirm = func(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NewCacheCommand creates the cache command
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layer registry cache",
		Long: `Manage the layer registry cache shared by the catalog servers.

The registry is rebuilt from the database on the first request after it
was invalidated. A rebuild reloads it immediately.`,
		Example: `  # Reload the registry from the database
  layercatalog cache rebuild

  # Drop the registry without prompting
  layercatalog cache invalidate --yes`,
	}

	cmd.AddCommand(newCacheRebuildCommand())
	cmd.AddCommand(newCacheInvalidateCommand())

	return cmd
}

func newCacheRebuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Drop and reload the layer registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if ok, err := confirmCacheChange(cmd, a, "rebuild"); err != nil || !ok {
					return err
				}
				if err := a.catalog.RebuildCache(ctx); err != nil {
					return err
				}

				names, err := a.catalog.Names(ctx)
				if err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Layer cache rebuilt (%d layers)", len(names)), color.NoColor)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&cacheYesFlag, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newCacheInvalidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the layer registry so the next request reloads it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if ok, err := confirmCacheChange(cmd, a, "invalidate"); err != nil || !ok {
					return err
				}
				if err := a.catalog.InvalidateCache(ctx); err != nil {
					return err
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "Layer cache invalidated", color.NoColor)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&cacheYesFlag, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// confirmCacheChange prompts before touching a shared redis cache. The
// in-memory cache only lives as long as this process.
func confirmCacheChange(cmd *cobra.Command, a *app, action string) (bool, error) {
	if cacheYesFlag || a.config.Cache.Backend != config.CacheRedis {
		return true, nil
	}

	warningColor := color.New(color.FgYellow, color.Bold)
	warningColor.Fprintf(cmd.ErrOrStderr(), "⚠️  The redis cache at %s is shared by running servers\n", a.config.Cache.Redis.Addr)

	ok, err := confirm(fmt.Sprintf("Really %s the layer cache?", action))
	if err != nil {
		return false, err
	}
	if !ok {
		color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "ℹ Cache %s cancelled\n", action)
	}
	return ok, nil
}
