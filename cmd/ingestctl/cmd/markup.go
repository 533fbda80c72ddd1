package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/service"
)

func newMarkupCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "markup <file.xml>...",
		Short: "Import accounting XML exports in order",
		Long: `Import one or more accounting XML exports. Files run in the given order,
so a masters export followed by vouchers works in a single --dry-run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer rt.close()

			svc := service.NewMarkupImportService(rt.store, rt.guard, rt.engine, rt.cfg.Import.MarkupSource)
			results := make([]*domain.MarkupResult, 0, len(args))
			for _, path := range args {
				result, err := importFile(cmd, svc, path)
				if err != nil {
					_ = printJSON(cmd.OutOrStdout(), results)
					return errors.Wrapf(err, "%s (session %s)", path, result.SessionID)
				}
				results = append(results, result)
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func importFile(cmd *cobra.Command, svc service.MarkupImportService, path string) (*domain.MarkupResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return &domain.MarkupResult{}, err
	}
	defer f.Close()
	return svc.Import(cmd.Context(), f)
}
