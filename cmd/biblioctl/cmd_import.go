package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/importer"
)

var importFlags struct {
	handle     int64
	barcodes   []string
	callNumber string
	confirm    int64
	output     string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a staged record into the local catalog",
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.Int64Var(&importFlags.handle, "handle", 0, "Handle printed by 'biblioctl search' (required)")
	f.StringSliceVar(&importFlags.barcodes, "barcode", nil, "Barcode of a specimen to create, repeatable")
	f.StringVar(&importFlags.callNumber, "call-number", "", "Call number for the new specimens")
	f.Int64Var(&importFlags.confirm, "confirm", 0, "Confirm replacing the entry with this id")
	f.StringVarP(&importFlags.output, "output", "o", "yaml", "Output format: yaml or json")

	_ = importCmd.MarkFlagRequired("handle")
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	db, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	cache, err := e.cache(ctx)
	if err != nil {
		return err
	}

	req := importer.Request{Handle: importFlags.handle}
	for _, b := range importFlags.barcodes {
		req.Specimens = append(req.Specimens, entity.Specimen{Barcode: b, CallNumber: importFlags.callNumber})
	}
	if importFlags.confirm != 0 {
		req.ConfirmID = &importFlags.confirm
	}

	svc := importer.NewService(cache, catalog.NewPostgresRepo(db), nil, e.log)
	entry, report, err := svc.Import(ctx, req)
	if err != nil {
		return fmt.Errorf("import handle %d: %w", importFlags.handle, err)
	}
	return writeOutput(cmd.OutOrStdout(), importFlags.output, map[string]any{
		"item":   entry,
		"report": report,
	})
}
