package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/model"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Search for new datasets and append them to the catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		flagCats, _ := cmd.Flags().GetStringSlice("categories")
		file, _ := cmd.Flags().GetString("categories-file")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if file == "" {
			file = cfg.Pipeline.CategoriesFile
		}

		sel, err := resolveCategories(flagCats, file, cfg.Pipeline.Categories)
		if err != nil {
			return err
		}

		env, err := initUpdate(ctx, sel, concurrency)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, runErr := env.Pipeline.Run(ctx)
		if summary != nil {
			if err := writeSummary(os.Stdout, summary); err != nil {
				return eris.Wrap(err, "write summary")
			}
		}
		if runErr != nil {
			zap.L().Error("update failed", zap.Error(runErr))
			return runErr
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().StringSlice("categories", nil, "categories to search (overrides config and categories file)")
	updateCmd.Flags().String("categories-file", "", "YAML file listing categories and seed queries")
	updateCmd.Flags().Int("concurrency", 0, "URLs processed in parallel per category (0 = config value)")
	rootCmd.AddCommand(updateCmd)
}

// writeSummary prints the run summary as indented JSON.
func writeSummary(w io.Writer, summary *model.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
