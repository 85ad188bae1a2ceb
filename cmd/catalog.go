package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-updater/internal/catalog"
	"github.com/sells-group/catalog-updater/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the dataset catalog",
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog size, identity coverage and per-category counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		cat, err := initCatalog(st)
		if err != nil {
			return err
		}

		recs, err := cat.Records(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog stats")
		}

		formatCatalogStats(os.Stdout, catalog.ComputeStats(recs))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogStatsCmd)
	rootCmd.AddCommand(catalogCmd)
}

// formatCatalogStats writes catalog statistics to w.
func formatCatalogStats(out io.Writer, s catalog.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "With DOI:\t%d\n", s.WithDOI)
	_, _ = fmt.Fprintf(w, "With URL:\t%d\n", s.WithURL)

	_, _ = fmt.Fprintln(w, "\nCATEGORY\tRECORDS")
	for _, c := range s.Categories() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", c, s.ByCategory[c])
	}

	_, _ = fmt.Fprintln(w, "\nFIELD\tFILLED")
	for _, f := range model.Fields() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", f.Key(), s.Coverage[f.Key()])
	}
	_ = w.Flush()
}
