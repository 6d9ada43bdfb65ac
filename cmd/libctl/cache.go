package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the render cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all cached covers, thumbnails and SVG pages",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			freed, err := o.renderer(0).ClearAll()
			if err != nil {
				return fmt.Errorf("clear cache %s: %w", o.cacheDir, err)
			}
			fmt.Fprintf(o.out, "Freed %.1f MB from %s\n", toMB(freed), o.cacheDir)
			return nil
		},
	})
	return cmd
}
