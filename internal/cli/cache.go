package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/internal/config"
	"github.com/matzehuels/cbzkit/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the decoded-page cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached decode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Config.Cache.Backend == config.CacheNone {
				printInfo("Cache is disabled")
				return nil
			}

			store, err := c.newCache(cmd.Context())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				return fmt.Errorf("%s cache cannot be cleared", c.Config.Cache.Backend)
			}

			var spinner *Spinner
			if !c.flags.noProgress && isTerminal(os.Stderr) {
				spinner = newSpinnerWithContext(cmd.Context(), os.Stderr, "Clearing cache...")
				spinner.Start()
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				if spinner != nil {
					spinner.StopWithError("Cache not cleared")
				}
				return fmt.Errorf("clear cache: %w", err)
			}

			msg := fmt.Sprintf("Cleared %s cache", c.Config.Cache.Backend)
			if spinner != nil {
				spinner.StopWithSuccess(msg)
			} else {
				printSuccess("%s", msg)
			}
			printDetail("Location: %s", c.cacheLocation())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached decodes are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(c.cacheLocation())
			return nil
		},
	}
}

// cacheLocation is the cache directory, or the redis URL for the redis
// backend.
func (c *CLI) cacheLocation() string {
	if c.Config.Cache.Backend == config.CacheRedis {
		return c.Config.Cache.RedisURL
	}
	dir, err := c.Config.CacheDir()
	if err != nil {
		return "unknown (" + err.Error() + ")"
	}
	return dir
}
