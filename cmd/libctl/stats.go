package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// statsOutput is the --json form of libctl stats.
type statsOutput struct {
	ImageBooks         int     `json:"image_books"`
	PDFBooks           int     `json:"pdf_books"`
	Categories         int     `json:"categories"`
	Favorites          int     `json:"favorites"`
	CustomCategories   int     `json:"custom_categories"`
	OptimizationNeeded int     `json:"optimization_needed"`
	CacheSizeMB        float64 `json:"cache_size_mb"`
	LastScan           string  `json:"last_scan,omitempty"`
}

func newStatsCmd(o *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show library totals and the render cache size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), o, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func runStats(ctx context.Context, o *options, asJSON bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	db, err := o.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := db.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	last, err := db.GetLastScan(ctx)
	if err != nil {
		return fmt.Errorf("read last scan: %w", err)
	}
	out := statsOutput{
		ImageBooks:         s.ImageBooks,
		PDFBooks:           s.PDFBooks,
		Categories:         s.Categories,
		Favorites:          s.Favorites,
		CustomCategories:   s.CustomCategories,
		OptimizationNeeded: s.OptimizationNeeded,
		CacheSizeMB:        toMB(o.renderer(0).CacheSize()),
	}
	if !last.IsZero() {
		out.LastScan = last.Local().Format(time.RFC3339)
	}

	if asJSON {
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(o.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Books\t%d\t(%d image, %d PDF)\n", out.ImageBooks+out.PDFBooks, out.ImageBooks, out.PDFBooks)
	fmt.Fprintf(tw, "Categories\t%d\n", out.Categories)
	fmt.Fprintf(tw, "Favorites\t%d\n", out.Favorites)
	fmt.Fprintf(tw, "Custom categories\t%d\n", out.CustomCategories)
	fmt.Fprintf(tw, "Need compression\t%d\n", out.OptimizationNeeded)
	fmt.Fprintf(tw, "Render cache\t%.1f MB\n", out.CacheSizeMB)
	if out.LastScan == "" {
		fmt.Fprintln(tw, "Last scan\tnever")
	} else {
		fmt.Fprintf(tw, "Last scan\t%s\n", out.LastScan)
	}
	return tw.Flush()
}

func toMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*10) / 10
}
