package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hamzali/psdbench/database"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		driver string
		dsn    string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored measurements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			db, err := database.New(driver, dsn)
			if err != nil {
				return err
			}

			defer func() {
				if cerr := db.Close(); err == nil {
					err = cerr
				}
			}()

			rows, err := db.Results(limit)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("run", "decoder", "file", "opacity", "parse", "merged image", "layers", "at")

			for _, r := range rows {
				t.Row(
					r.RunID,
					r.Decoder,
					r.File,
					fmt.Sprintf("%t", r.ApplyOpacity),
					fmt.Sprintf("%.2fms", r.Result.ParseTime),
					fmt.Sprintf("%.2fms", r.Result.ImageRenderTime),
					fmt.Sprintf("%.2fms", r.Result.LayerRenderTime),
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())

			return err
		},
	}

	cmd.Flags().StringVar(&driver, "store-driver", "sqlite", "result store driver: postgres, sqlite or mysql")
	cmd.Flags().StringVar(&dsn, "store-dsn", "", "result store data source name")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	_ = cmd.MarkFlagRequired("store-dsn")

	return cmd
}
