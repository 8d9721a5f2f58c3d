package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/oreflow/pkg/cache"
	"github.com/matzehuels/oreflow/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the solution and artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. It clears whichever
// backend the config selects.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached solution and artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if c.cfg.Cache.Backend == config.CacheNone {
				printInfo("Caching is disabled")
				return nil
			}
			ch, err := c.newCache(ctx, false)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer ch.Close()

			clearer, ok := ch.(cache.Clearer)
			if !ok {
				printInfo("Cache is empty")
				return nil
			}
			if err := clearer.Clear(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared %s cache", c.cfg.Cache.Backend)
			printDetail("%s", cacheLocation(c.cfg.Cache))
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cacheLocation(c.cfg.Cache))
			return err
		},
	}
}

// cacheLocation describes the configured backend: a directory for the file
// cache, a URL or database otherwise.
func cacheLocation(cc config.Cache) string {
	switch cc.Backend {
	case config.CacheRedis:
		return cc.RedisURL
	case config.CacheMongo:
		return fmt.Sprintf("%s (%s.%s)", cc.MongoURI, cc.MongoDatabase, cc.MongoCollection)
	case config.CacheNone:
		return "none"
	default:
		return cc.Dir
	}
}
