package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/evorao/cache"
)

type cacheFlags struct {
	path   string
	driver string
}

func cacheCmd(global *globalFlags) *cobra.Command {
	flags := &cacheFlags{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the resolution cache",
	}
	cmd.PersistentFlags().StringVarP(&flags.path, "cache", "c", "", "Cache path (default: "+cache.DefaultFileName+" in the working directory)")
	cmd.PersistentFlags().StringVar(&flags.driver, "cache-driver", "", "Cache driver (file, sqlite, nats, s3)")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarize cached resolutions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, driver, err := loadCache(cmd, global, flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Driver:     %s\n", driver)
			fmt.Fprintf(out, "Labels:     %d\n", c.Len())
			fmt.Fprintf(out, "Resolved:   %d\n", c.Resolved())
			fmt.Fprintf(out, "Unresolved: %d\n", c.Len()-c.Resolved())
			if ts := c.FetchedAt(); !ts.IsZero() {
				fmt.Fprintf(out, "Fetched at: %s\n", ts.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "Fetched at: never")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <label>",
		Short: "Print the cached resolution for a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadCache(cmd, global, flags)
			if err != nil {
				return err
			}

			res, ok := c.Lookup(args[0])
			if !ok {
				return fmt.Errorf("label %q is not cached", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res)
		},
	})

	return cmd
}

// loadCache opens the configured store and reads it. Unlike enrichment, an
// absent cache is an error here.
func loadCache(cmd *cobra.Command, global *globalFlags, flags *cacheFlags) (*cache.Cache, cache.Driver, error) {
	ctx, _, cfg, err := setup(cmd, global)
	if err != nil {
		return nil, "", err
	}

	if flags.driver != "" {
		cfg.Cache.Driver = cache.Driver(flags.driver)
	}
	if flags.path != "" {
		cfg.Cache.Path = flags.path
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = cache.DefaultPath(cfg.Cache.Driver, cache.DefaultFileName)
	}

	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, "", fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	c, err := store.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load %s cache: %w", store.Driver(), err)
	}
	return c, store.Driver(), nil
}
