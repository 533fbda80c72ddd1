package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-ingest/internal/service"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int
	var logs bool

	c := &cobra.Command{
		Use:   "history",
		Short: "List recent staged imports, or markup import logs with --logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer rt.close()

			if limit <= 0 {
				limit = rt.cfg.Server.HistoryLimit
			}
			if logs {
				entries, err := service.NewLedgerQueryService(rt.store).ImportLogs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}
			records, err := newStagingService(rt).History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows (default IMPORT_HISTORY_LIMIT)")
	c.Flags().BoolVar(&logs, "logs", false, "show markup import logs instead of staged imports")
	return c
}
