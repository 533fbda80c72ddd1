package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-ingest/internal/domain"
	"ledger-ingest/internal/parser"
	"ledger-ingest/internal/service"
	"ledger-ingest/internal/validator"
)

func newStagingService(rt *runtime) service.StagingService {
	return service.NewStagingService(rt.store, parser.NewWorkbookParser(), validator.New(), rt.engine, rt.cfg.Import.SheetSource)
}

func newStageCmd(v *viper.Viper) *cobra.Command {
	var importType string
	var syncNow bool

	c := &cobra.Command{
		Use:   "stage <file.xlsx|file.xls>",
		Short: "Stage a spreadsheet export for a later sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !parser.AllowedExtension(path) || strings.EqualFold(filepath.Ext(path), parser.ExtXML) {
				return errors.Errorf("%s: expected a .xls or .xlsx file", path)
			}

			rt, err := openRuntime(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer rt.close()

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			svc := newStagingService(rt)
			staged, err := svc.Stage(cmd.Context(), filepath.Base(path), domain.ImportType(importType), f)
			if err != nil {
				return err
			}
			if !syncNow {
				return printJSON(cmd.OutOrStdout(), staged)
			}

			synced, err := svc.Sync(cmd.Context(), staged.ImportID)
			if err != nil {
				return errors.Wrapf(err, "sync %s", staged.ImportID)
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"staged": staged,
				"sync":   synced,
			})
		},
	}
	c.Flags().StringVarP(&importType, "type", "t", "", "import type: customers, products or invoices")
	c.Flags().BoolVar(&syncNow, "sync", false, "sync right after staging")
	_ = c.MarkFlagRequired("type")
	return c
}

func newSyncCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <import-id>",
		Short: "Commit a staged import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer rt.close()

			result, err := newStagingService(rt).Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
