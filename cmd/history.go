package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var (
		top    int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history [search-log]",
		Short: "Rank past evaluations by overall score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.SearchLogPath()
			}
			return report.History(path, format, cmd.OutOrStdout(), top)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of evaluations to show, 0 for all")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, markdown, json)")
	return cmd
}
